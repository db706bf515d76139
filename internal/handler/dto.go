package handler

import "time"

const timeLayout = time.RFC3339

type NewsItemResponse struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
	Date    string `json:"date"`
	Source  string `json:"source,omitempty"`
}

type NewsResponse struct {
	Query  string             `json:"query"`
	Start  int                `json:"start"`
	Count  int                `json:"count"`
	Total  int                `json:"total"`
	Cached bool               `json:"cached"`
	Items  []NewsItemResponse `json:"items"`
}

type QueryStatsResponse struct {
	Query      string `json:"query"`
	Count      int    `json:"count"`
	LastAccess string `json:"last_access"`
}

type PopularResponse struct {
	Queries []QueryStatsResponse `json:"queries"`
}
