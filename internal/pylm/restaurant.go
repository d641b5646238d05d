package pylm

import "math/rand"

// Restaurant is one Chinese-Restaurant-Process table set for a single LM
// context. It tracks, per dish, how many customers are seated and how large
// each of that dish's open tables is.
//
// Grounded on NPYLM/HPYLM.go's `restaurant` type: tables, customerCount,
// totalCustomerCount, totalTableCountForCustomer, totalTableCount, renamed to
// an add/remove/c/t contract and made dish-type generic instead of being
// string-keyed only.
type Restaurant[Dish comparable] struct {
	tables map[Dish][]uint32 // dish -> sizes of its open tables

	customerCount map[Dish]uint32 // dish -> c_{h,w}
	totalCustomer uint32          // C_h

	tableCountForDish map[Dish]uint32 // dish -> t_{h,w}
	totalTables       uint32          // T_h
}

// NewRestaurant returns an empty table set.
func NewRestaurant[Dish comparable]() *Restaurant[Dish] {
	return &Restaurant[Dish]{
		tables:            make(map[Dish][]uint32),
		customerCount:     make(map[Dish]uint32),
		tableCountForDish: make(map[Dish]uint32),
	}
}

// C returns the total number of customers seated in this restaurant.
func (r *Restaurant[Dish]) C() uint32 { return r.totalCustomer }

// T returns the total number of open tables in this restaurant.
func (r *Restaurant[Dish]) T() uint32 { return r.totalTables }

// c returns the number of customers seated under dish w.
func (r *Restaurant[Dish]) c(w Dish) uint32 { return r.customerCount[w] }

// t returns the number of tables currently serving dish w.
func (r *Restaurant[Dish]) t(w Dish) uint32 { return r.tableCountForDish[w] }

// CustomerCount is c's exported form, for callers outside this package that
// need a dish's own seating count rather than the restaurant-wide total (the
// snapshot dump's per-dish c_{h,w} field).
func (r *Restaurant[Dish]) CustomerCount(w Dish) uint32 { return r.customerCount[w] }

// TableCount is t's exported form, for callers outside this package that
// need a dish's own table count rather than the restaurant-wide total (the
// snapshot dump's per-dish t_{h,w} field).
func (r *Restaurant[Dish]) TableCount(w Dish) uint32 { return r.tableCountForDish[w] }

// empty reports whether the restaurant currently seats nobody.
func (r *Restaurant[Dish]) empty() bool { return r.totalCustomer == 0 }

// addExistingOrNewTable draws which of w's existing tables (if any) gains the
// new customer, weighted by max(size-d, 0), against a single "open a new
// table" option weighted by smoothingCoefficient*parentProb. It seats the
// customer and reports whether a new table was opened.
func (r *Restaurant[Dish]) addExistingOrNewTable(w Dish, d float64, smoothingCoefficient, parentProb float64) bool {
	tbls := r.tables[w]
	weights := make([]float64, len(tbls)+1)
	sum := 0.0
	for k, size := range tbls {
		weight := float64(size) - d
		if weight < 0 {
			weight = 0
		}
		weights[k] = weight
		sum += weight
	}
	weights[len(tbls)] = smoothingCoefficient * parentProb
	sum += weights[len(tbls)]

	k := sampleIndex(weights, sum)
	isNewTable := k == len(tbls)
	if isNewTable {
		r.tables[w] = append(r.tables[w], 1)
		r.tableCountForDish[w]++
		r.totalTables++
	} else {
		r.tables[w][k]++
	}
	r.customerCount[w]++
	r.totalCustomer++
	return isNewTable
}

// Add is exposed for callers (HPYLM) that have already computed the table
// weights; see HPYLM.addCustomerRecursively for the composition with the
// back-off probability.
func (r *Restaurant[Dish]) Add(w Dish, d float64, smoothingCoefficient, parentProb float64) bool {
	return r.addExistingOrNewTable(w, d, smoothingCoefficient, parentProb)
}

// Remove draws a uniformly random customer among w's c(w) seated customers,
// removes it from its table, and reports whether that table (and thus the
// restaurant's grip on the parent context) was vacated.
func (r *Restaurant[Dish]) Remove(w Dish) bool {
	tbls, ok := r.tables[w]
	if !ok || len(tbls) == 0 {
		panic("pylm: remove of a customer that was never seated")
	}
	weights := make([]float64, len(tbls))
	sum := 0.0
	for k, size := range tbls {
		weights[k] = float64(size)
		sum += weights[k]
	}
	k := sampleIndex(weights, sum)

	tbls[k]--
	r.customerCount[w]--
	r.totalCustomer--
	wasLastCustomerOfTable := tbls[k] == 0
	if wasLastCustomerOfTable {
		r.tables[w] = append(tbls[:k], tbls[k+1:]...)
		r.tableCountForDish[w]--
		r.totalTables--
		if r.tableCountForDish[w] == 0 {
			delete(r.tables, w)
			delete(r.tableCountForDish, w)
			delete(r.customerCount, w)
		}
	}
	return wasLastCustomerOfTable
}

// Dishes returns the set of dishes currently seated, for hyperparameter
// resampling and trim.
func (r *Restaurant[Dish]) Dishes() []Dish {
	dishes := make([]Dish, 0, len(r.customerCount))
	for w := range r.customerCount {
		dishes = append(dishes, w)
	}
	return dishes
}

// TableSizes returns a copy of w's open table sizes.
func (r *Restaurant[Dish]) TableSizes(w Dish) []uint32 {
	tbls := r.tables[w]
	out := make([]uint32, len(tbls))
	copy(out, tbls)
	return out
}

// sampleIndex draws an index i from weights with probability proportional to
// weights[i]/sum. sum must equal the exact sum of weights.
func sampleIndex(weights []float64, sum float64) int {
	r := rand.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if acc > r {
			return i
		}
	}
	return len(weights) - 1
}
