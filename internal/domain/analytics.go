package domain

type AgeCount struct {
	Age   int   `json:"age"`
	Count int64 `json:"count"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

type CourseSort string

const (
	SortRatingAsc  CourseSort = "rating_asc"
	SortRatingDesc CourseSort = "rating_desc"
)

// CourseFilter selects one page of the course listing. Page is 1-based.
type CourseFilter struct {
	Category string
	Sort     CourseSort
	Page     int
	Limit    int
}
