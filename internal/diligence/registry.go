// Package diligence manages the per-startup legal-diligence bag: ordered
// per-category document lists plus cached analysis results.
package diligence

import (
	"encoding/json"
	"fmt"

	"dealflow/api/internal/store"
)

// NormalizeCategory decodes one category's raw value into a document list.
// A legacy stored shape held a single document object instead of a list;
// it is transparently wrapped into a one-element list.
func NormalizeCategory(raw json.RawMessage) ([]store.UploadedDocument, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var docs []store.UploadedDocument
	if err := json.Unmarshal(raw, &docs); err == nil {
		return docs, nil
	}

	var single store.UploadedDocument
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("decode document category: %w", err)
	}
	return []store.UploadedDocument{single}, nil
}

func encodeCategory(docs []store.UploadedDocument) (json.RawMessage, error) {
	encoded, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("encode document category: %w", err)
	}
	return encoded, nil
}

// Append adds a document to a category, creating the category and the
// registry maps when absent, and invalidates the category's cached analysis.
// Insertion order is upload order.
func Append(bag *store.LegalDiligence, category string, doc store.UploadedDocument) (int, error) {
	if bag.UploadedDocuments == nil {
		bag.UploadedDocuments = make(map[string]json.RawMessage)
	}

	docs, err := NormalizeCategory(bag.UploadedDocuments[category])
	if err != nil {
		return 0, err
	}
	docs = append(docs, doc)

	encoded, err := encodeCategory(docs)
	if err != nil {
		return 0, err
	}
	bag.UploadedDocuments[category] = encoded
	invalidateAnalysis(bag, category)
	return len(docs), nil
}

// ListCategory returns the documents of one category, normalized.
func ListCategory(bag *store.LegalDiligence, category string) ([]store.UploadedDocument, error) {
	docs, err := NormalizeCategory(bag.UploadedDocuments[category])
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []store.UploadedDocument{}
	}
	return docs, nil
}

// ListAll returns every category's documents, normalized.
func ListAll(bag *store.LegalDiligence) (map[string][]store.UploadedDocument, error) {
	out := make(map[string][]store.UploadedDocument, len(bag.UploadedDocuments))
	for category, raw := range bag.UploadedDocuments {
		docs, err := NormalizeCategory(raw)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}
		out[category] = docs
	}
	return out, nil
}

// DeleteDocument removes a document by id from a category. A missing id is a
// no-op filter that finds no match. When the category becomes empty its key
// is removed entirely. Any call invalidates the category's cached analysis.
func DeleteDocument(bag *store.LegalDiligence, category, documentID string) error {
	docs, err := NormalizeCategory(bag.UploadedDocuments[category])
	if err != nil {
		return err
	}

	kept := make([]store.UploadedDocument, 0, len(docs))
	for _, doc := range docs {
		if doc.ID != documentID {
			kept = append(kept, doc)
		}
	}

	if len(kept) == 0 {
		delete(bag.UploadedDocuments, category)
	} else {
		encoded, err := encodeCategory(kept)
		if err != nil {
			return err
		}
		bag.UploadedDocuments[category] = encoded
	}
	invalidateAnalysis(bag, category)
	return nil
}

// DeleteCategory removes a whole category and its cached analysis.
func DeleteCategory(bag *store.LegalDiligence, category string) {
	delete(bag.UploadedDocuments, category)
	invalidateAnalysis(bag, category)
}

// invalidateAnalysis drops the cached analysis entry for a category so
// results are never served stale relative to their source documents.
func invalidateAnalysis(bag *store.LegalDiligence, category string) {
	if bag.AnalysisResults != nil {
		delete(bag.AnalysisResults, category)
	}
}
