// Package docstore persists document and chunk records in a local bbolt
// database. Chunk text is kept here independently of the vector index so
// keyword retrieval keeps working when the index is unreachable and so
// documents can be re-embedded later.
package docstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketDocs      = []byte("documents")
	bucketChunks    = []byte("chunks")
	bucketDocChunks = []byte("doc_chunks")
	bucketUploads   = []byte("uploads")
)

// ErrDocumentNotFound is returned when a document id is unknown.
var ErrDocumentNotFound = errors.New("document not found")

// Document is the metadata record for one uploaded document.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Filetype   string    `json:"filetype"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Chunk is one immutable passage of a document's text.
type Chunk struct {
	ID         uint64 `json:"id"`
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
}

// Store wraps the bbolt database.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the database at path and ensures all buckets.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("docstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocs, bucketChunks, bucketDocChunks, bucketUploads} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutDocument stores a document record and its upload-time index entry.
func (s *Store) PutDocument(doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketDocs).Put([]byte(doc.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketUploads).Put(uploadKey(doc), []byte(doc.ID))
	})
}

// GetDocument returns the document with the given id.
func (s *Store) GetDocument(id string) (Document, error) {
	var doc Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return ErrDocumentNotFound
		}
		return json.Unmarshal(data, &doc)
	})
	return doc, err
}

// LatestDocument returns the most recently uploaded document. The second
// return value is false when the store is empty.
func (s *Store) LatestDocument() (Document, bool, error) {
	var id []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		k, v := tx.Bucket(bucketUploads).Cursor().Last()
		if k != nil {
			id = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || id == nil {
		return Document{}, false, err
	}

	doc, err := s.GetDocument(string(id))
	if err != nil {
		return Document{}, false, err
	}
	return doc, true, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments() ([]Document, error) {
	var docs []Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(_, v []byte) error {
			var doc Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
	return docs, nil
}

// AddChunks stores the given texts as chunks of the document, in order,
// and returns the created records. Chunk ids come from the bucket
// sequence, so creation order is the ordinal position.
func (s *Store) AddChunks(documentID string, texts []string) ([]Chunk, error) {
	chunks := make([]Chunk, 0, len(texts))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		chunkBucket := tx.Bucket(bucketChunks)

		ids := make([]uint64, 0, len(texts))
		for _, text := range texts {
			id, err := chunkBucket.NextSequence()
			if err != nil {
				return err
			}
			chunk := Chunk{ID: id, DocumentID: documentID, Text: text}
			data, err := json.Marshal(chunk)
			if err != nil {
				return err
			}
			if err := chunkBucket.Put(chunkKey(id), data); err != nil {
				return err
			}
			chunks = append(chunks, chunk)
			ids = append(ids, id)
		}

		index, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDocChunks).Put([]byte(documentID), index)
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// ChunksByDocument returns the document's chunks in creation order.
func (s *Store) ChunksByDocument(documentID string) ([]Chunk, error) {
	var chunks []Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		index := tx.Bucket(bucketDocChunks).Get([]byte(documentID))
		if index == nil {
			return nil
		}
		var ids []uint64
		if err := json.Unmarshal(index, &ids); err != nil {
			return err
		}

		chunkBucket := tx.Bucket(bucketChunks)
		for _, id := range ids {
			data := chunkBucket.Get(chunkKey(id))
			if data == nil {
				continue
			}
			var chunk Chunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				return err
			}
			chunks = append(chunks, chunk)
		}
		return nil
	})
	return chunks, err
}

// AllChunks returns every stored chunk in creation order.
func (s *Store) AllChunks() ([]Chunk, error) {
	var chunks []Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).ForEach(func(_, v []byte) error {
			var chunk Chunk
			if err := json.Unmarshal(v, &chunk); err != nil {
				return err
			}
			chunks = append(chunks, chunk)
			return nil
		})
	})
	return chunks, err
}

// ChunkCount returns how many chunks a document owns.
func (s *Store) ChunkCount(documentID string) (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		index := tx.Bucket(bucketDocChunks).Get([]byte(documentID))
		if index == nil {
			return nil
		}
		var ids []uint64
		if err := json.Unmarshal(index, &ids); err != nil {
			return err
		}
		count = len(ids)
		return nil
	})
	return count, err
}

// DeleteDocument removes the document record, its upload index entry, and
// all of its chunks.
func (s *Store) DeleteDocument(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		docData := tx.Bucket(bucketDocs).Get([]byte(id))
		if docData == nil {
			return ErrDocumentNotFound
		}
		var doc Document
		if err := json.Unmarshal(docData, &doc); err != nil {
			return err
		}

		index := tx.Bucket(bucketDocChunks).Get([]byte(id))
		if index != nil {
			var ids []uint64
			if err := json.Unmarshal(index, &ids); err != nil {
				return err
			}
			chunkBucket := tx.Bucket(bucketChunks)
			for _, chunkID := range ids {
				if err := chunkBucket.Delete(chunkKey(chunkID)); err != nil {
					return err
				}
			}
		}

		if err := tx.Bucket(bucketDocChunks).Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketUploads).Delete(uploadKey(doc)); err != nil {
			return err
		}
		return tx.Bucket(bucketDocs).Delete([]byte(id))
	})
}

func chunkKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

// uploadKey orders documents by upload time. The fixed-width nanosecond
// prefix keeps lexicographic and chronological order identical; the id
// suffix keeps keys unique when two uploads share a timestamp.
func uploadKey(doc Document) []byte {
	key := make([]byte, 8, 8+len(doc.ID))
	binary.BigEndian.PutUint64(key, uint64(doc.UploadedAt.UnixNano()))
	return append(key, doc.ID...)
}
