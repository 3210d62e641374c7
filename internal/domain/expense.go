package domain

import "sort"

// ExpenseRecord is one logged transaction. Records are immutable once written;
// they are only ever deleted.
type ExpenseRecord struct {
	UserID      int64  `bson:"user_id" json:"user_id"`
	SortKey     string `bson:"sort_key" json:"sort_key"`
	Date        string `bson:"date" json:"date"`
	Amount      Money  `bson:"amount" json:"amount"`
	Category    int    `bson:"category" json:"category"`
	Currency    string `bson:"currency" json:"currency"`
	Description string `bson:"description" json:"description"`
	Income      bool   `bson:"income" json:"income"`
}

// SortRecords orders records by sort key.
func SortRecords(records []ExpenseRecord, ascending bool) {
	sort.SliceStable(records, func(i, j int) bool {
		if ascending {
			return records[i].SortKey < records[j].SortKey
		}
		return records[i].SortKey > records[j].SortKey
	})
}
