package scoring

// Split tables indexed by total headcount (3..6) as {sala, cocina}.
var (
	afternoonSplit = map[int][2]int{3: {2, 1}, 4: {2, 2}, 5: {3, 2}, 6: {3, 3}}
	kitchenSplit   = map[int][2]int{3: {1, 2}, 4: {2, 2}, 5: {2, 3}, 6: {3, 3}}
)

// SplitHeadcount splits a total shift headcount into (sala, cocina). The
// afternoon shift leans on sala; midday and night lean on the kitchen.
// Totals above 6 are treated as 6.
func SplitHeadcount(total int, afternoon bool) (sala, cocina int) {
	switch {
	case total <= 1:
		return 1, 0
	case total == 2:
		return 1, 1
	case total > 6:
		total = 6
	}
	table := kitchenSplit
	if afternoon {
		table = afternoonSplit
	}
	s := table[total]
	return s[0], s[1]
}
