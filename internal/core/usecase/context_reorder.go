package usecase

import "github.com/kirillkom/segment-advisor/internal/core/domain"

// ReorderForContext moves the most relevant documents to both ends of the
// sequence: input [d0 d1 d2 d3 d4 d5] becomes [d0 d2 d4 d5 d3 d1].
func ReorderForContext(docs domain.FusedSet) domain.FusedSet {
	n := len(docs)
	out := make(domain.FusedSet, n)
	front, back := 0, n-1
	for i, doc := range docs {
		if i%2 == 0 {
			out[front] = doc
			front++
			continue
		}
		out[back] = doc
		back--
	}
	return out
}
