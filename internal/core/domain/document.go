package domain

// Metadata keys set by the corpus loader and the retrieval backends.
const (
	MetaSource = "source"
	MetaTitle  = "title"
	MetaPage   = "page"
	MetaSheet  = "sheet"
	MetaRow    = "row"
	MetaChunk  = "chunk"
)

// Document is a retrievable passage. Two documents are the same passage when
// their Content is byte-for-byte equal; metadata never takes part in identity.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewDocument copies metadata so the returned value shares no state with the caller.
func NewDocument(content string, metadata map[string]string) Document {
	doc := Document{Content: content}
	if len(metadata) > 0 {
		doc.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			doc.Metadata[k] = v
		}
	}
	return doc
}

func (d Document) Meta(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}

// CandidateSet is one adapter's answer to one query, most relevant first.
type CandidateSet []Document

// CoreDocumentSet holds the documents injected into every context regardless of the query.
type CoreDocumentSet []Document

// FusedSet is the merged, duplicate-free sequence handed to post-processing.
type FusedSet []Document

func (s FusedSet) Contents() []string {
	out := make([]string, 0, len(s))
	for _, doc := range s {
		out = append(out, doc.Content)
	}
	return out
}
