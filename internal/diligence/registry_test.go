package diligence

import (
	"encoding/json"
	"testing"
	"time"

	"dealflow/api/internal/store"
)

func doc(id, name string) store.UploadedDocument {
	return store.UploadedDocument{
		ID:         id,
		FileName:   name,
		MimeType:   "text/plain",
		UploadedAt: time.Now(),
	}
}

func TestAppendCreatesAndOrders(t *testing.T) {
	bag := &store.LegalDiligence{}

	count, err := Append(bag, "contracts", doc("doc_1", "nda.txt"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	count, err = Append(bag, "contracts", doc("doc_2", "msa.txt"))
	if err != nil {
		t.Fatalf("second Append() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}

	docs, err := ListCategory(bag, "contracts")
	if err != nil {
		t.Fatalf("ListCategory() error = %v", err)
	}
	if docs[0].ID != "doc_1" || docs[1].ID != "doc_2" {
		t.Fatalf("expected upload order preserved, got %+v", docs)
	}
}

func TestAppendInvalidatesAnalysis(t *testing.T) {
	bag := &store.LegalDiligence{
		AnalysisResults: map[string]json.RawMessage{
			"contracts": json.RawMessage(`{"summary":"old"}`),
			"ip":        json.RawMessage(`{"summary":"kept"}`),
		},
	}

	if _, err := Append(bag, "contracts", doc("doc_1", "nda.txt")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, ok := bag.AnalysisResults["contracts"]; ok {
		t.Fatal("expected contracts analysis invalidated")
	}
	if _, ok := bag.AnalysisResults["ip"]; !ok {
		t.Fatal("unrelated category analysis must survive")
	}
}

func TestLegacySingleObjectNormalized(t *testing.T) {
	legacy, _ := json.Marshal(doc("doc_old", "legacy.txt"))
	bag := &store.LegalDiligence{
		UploadedDocuments: map[string]json.RawMessage{"contracts": legacy},
	}

	docs, err := ListCategory(bag, "contracts")
	if err != nil {
		t.Fatalf("ListCategory() error = %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "doc_old" {
		t.Fatalf("expected legacy object wrapped into a list, got %+v", docs)
	}

	// Appending to a legacy category keeps the existing document.
	count, err := Append(bag, "contracts", doc("doc_new", "new.txt"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2 after append to legacy category, got %d", count)
	}
}

func TestDeleteDocument(t *testing.T) {
	bag := &store.LegalDiligence{}
	if _, err := Append(bag, "contracts", doc("doc_1", "nda.txt")); err != nil {
		t.Fatal(err)
	}
	if _, err := Append(bag, "contracts", doc("doc_2", "msa.txt")); err != nil {
		t.Fatal(err)
	}

	if err := DeleteDocument(bag, "contracts", "doc_1"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	docs, _ := ListCategory(bag, "contracts")
	if len(docs) != 1 || docs[0].ID != "doc_2" {
		t.Fatalf("expected doc_2 to survive, got %+v", docs)
	}

	// Removing the last document drops the category key entirely.
	if err := DeleteDocument(bag, "contracts", "doc_2"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if _, ok := bag.UploadedDocuments["contracts"]; ok {
		t.Fatal("expected empty category key removed")
	}
}

func TestDeleteDocumentMissingIDIsNoop(t *testing.T) {
	bag := &store.LegalDiligence{
		AnalysisResults: map[string]json.RawMessage{"contracts": json.RawMessage(`{}`)},
	}
	if _, err := Append(bag, "contracts", doc("doc_1", "nda.txt")); err != nil {
		t.Fatal(err)
	}
	bag.AnalysisResults["contracts"] = json.RawMessage(`{"summary":"fresh"}`)

	if err := DeleteDocument(bag, "contracts", "doc_missing"); err != nil {
		t.Fatalf("expected no-op for missing id, got %v", err)
	}
	docs, _ := ListCategory(bag, "contracts")
	if len(docs) != 1 {
		t.Fatalf("expected document untouched, got %+v", docs)
	}
	// Even a no-op delete invalidates the cached analysis.
	if _, ok := bag.AnalysisResults["contracts"]; ok {
		t.Fatal("expected analysis invalidated by delete call")
	}
}

func TestDeleteCategory(t *testing.T) {
	bag := &store.LegalDiligence{
		AnalysisResults: map[string]json.RawMessage{"contracts": json.RawMessage(`{}`)},
	}
	if _, err := Append(bag, "contracts", doc("doc_1", "nda.txt")); err != nil {
		t.Fatal(err)
	}

	DeleteCategory(bag, "contracts")
	if _, ok := bag.UploadedDocuments["contracts"]; ok {
		t.Fatal("expected category removed")
	}
	if _, ok := bag.AnalysisResults["contracts"]; ok {
		t.Fatal("expected analysis removed with category")
	}
}

func TestListAll(t *testing.T) {
	bag := &store.LegalDiligence{}
	if _, err := Append(bag, "contracts", doc("doc_1", "nda.txt")); err != nil {
		t.Fatal(err)
	}
	if _, err := Append(bag, "ip", doc("doc_2", "patents.txt")); err != nil {
		t.Fatal(err)
	}

	all, err := ListAll(bag)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 2 || len(all["contracts"]) != 1 || len(all["ip"]) != 1 {
		t.Fatalf("unexpected listing %+v", all)
	}
}
