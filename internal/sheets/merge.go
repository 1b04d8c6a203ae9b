package sheets

import "fmt"

const DefaultRetentionCap = 1000

// MergeHistory prepends newBody to the rows already on a tab and truncates
// the result to limit rows. existing is the tab as read, header first.
// When its header differs from header the old rows are dropped.
func MergeHistory(header []string, existing, newBody [][]interface{}, limit int) [][]interface{} {
	if limit <= 0 {
		limit = DefaultRetentionCap
	}

	var oldBody [][]interface{}
	if len(existing) > 0 && headersMatch(header, existing[0]) {
		oldBody = existing[1:]
	}

	merged := make([][]interface{}, 0, min(len(newBody)+len(oldBody), limit))
	merged = append(merged, newBody...)
	merged = append(merged, oldBody...)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func headersMatch(want []string, got []interface{}) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != cellString(got[i]) {
			return false
		}
	}
	return true
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
