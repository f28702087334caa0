package catalog

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"github.com/google/uuid"

	"labops/internal/blob"
	"labops/internal/store"
)

// Service covers the catalog concerns the generic CRUD surface cannot:
// document uploads and the delete cascade from an equipment item to its
// documents.
type Service struct {
	store store.Store
	blobs blob.Store
}

func NewService(st store.Store, blobs blob.Store) *Service {
	return &Service{store: st, blobs: blobs}
}

// UploadDocument stores the file and records its metadata under the owning
// equipment item.
func (s *Service) UploadDocument(ctx context.Context, equipmentID, fileName, mime, uploadedBy string, r io.Reader) (Document, error) {
	if fileName == "" {
		return Document{}, store.Invalid(store.ErrRequired, "file_name", "file name is required")
	}
	if _, err := s.store.Get(ctx, EquipmentItemFQN, equipmentID); err != nil {
		return Document{}, err
	}
	key := fmt.Sprintf("catalog/%s/%s%s", equipmentID, uuid.NewString(), path.Ext(fileName))
	info, err := s.blobs.Put(ctx, key, r)
	if err != nil {
		return Document{}, fmt.Errorf("store document: %w", err)
	}
	rec, err := s.store.Insert(ctx, DocumentFQN, map[string]any{
		"equipment_item_id": equipmentID,
		"file_name":         fileName,
		"mime":              mime,
		"size":              info.Size,
		"storage_key":       info.Key,
		"hash":              info.SHA256,
		"uploaded_by":       uploadedBy,
	})
	if err != nil {
		// metadata write failed; don't leave the object orphaned
		if delErr := s.blobs.Delete(ctx, info.Key); delErr != nil {
			log.Printf("orphaned blob %s: %v", info.Key, delErr)
		}
		return Document{}, err
	}
	return DocumentFromRecord(rec), nil
}

func (s *Service) Documents(ctx context.Context, equipmentID string) ([]Document, error) {
	recs, err := s.store.Select(ctx, store.Query{
		Entity:  DocumentFQN,
		Filters: []store.Filter{store.Eq("equipment_item_id", equipmentID)},
		Order:   []store.Order{{Field: "created_at"}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(recs))
	for _, rec := range recs {
		out = append(out, DocumentFromRecord(rec))
	}
	return out, nil
}

// DocumentURL returns a temporary download URL for one document.
func (s *Service) DocumentURL(ctx context.Context, documentID string, expiry time.Duration) (string, error) {
	rec, err := s.store.Get(ctx, DocumentFQN, documentID)
	if err != nil {
		return "", err
	}
	return s.blobs.URL(ctx, asString(rec.Data["storage_key"]), expiry)
}

func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	rec, err := s.store.Get(ctx, DocumentFQN, documentID)
	if err != nil {
		return err
	}
	if key := asString(rec.Data["storage_key"]); key != "" {
		if err := s.blobs.Delete(ctx, key); err != nil {
			log.Printf("blob delete %s: %v", key, err)
		}
	}
	return s.store.Delete(ctx, DocumentFQN, documentID)
}

// DeleteEquipmentItem removes a catalog item and cascades to its documents.
// Facility equipment rows keep only a weak provenance reference and are
// never touched.
func (s *Service) DeleteEquipmentItem(ctx context.Context, equipmentID string) error {
	docs, err := s.Documents(ctx, equipmentID)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := s.DeleteDocument(ctx, d.ID); err != nil {
			return fmt.Errorf("cascade document %s: %w", d.ID, err)
		}
	}
	return s.store.Delete(ctx, EquipmentItemFQN, equipmentID)
}
