package main

import (
	"bytes"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"leaseflow/blob"
)

const maxUploadBytes = 32 << 20 // 32 MiB

type uploadResponse struct {
	OK       bool   `json:"ok"`
	BlobID   string `json:"blobId,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Digest   string `json:"digest,omitempty"`
}

// handleUpload accepts a multipart file and forwards it to the blob
// publisher. The gateway makes exactly one store attempt; an ambiguous
// failure is surfaced, never retried.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{OK: false})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{OK: false})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil || len(content) == 0 {
		writeJSON(w, http.StatusBadRequest, uploadResponse{OK: false})
		return
	}

	stored, err := s.blobStore.Store(r.Context(), bytes.NewReader(content), int64(len(content)))
	if err != nil {
		if s.log != nil {
			s.log.Error("blob store failed", zap.Error(err))
		}
		if s.met != nil {
			s.met.BlobUploadsTotal.WithLabelValues("error").Inc()
		}
		writeJSON(w, http.StatusInternalServerError, uploadResponse{OK: false})
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if s.met != nil {
		outcome := "stored"
		if stored.Certified {
			outcome = "already_certified"
		}
		s.met.BlobUploadsTotal.WithLabelValues(outcome).Inc()
		s.met.BlobUploadBytes.Add(float64(len(content)))
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		OK:       true,
		BlobID:   stored.BlobID,
		MimeType: mimeType,
		Digest:   blob.Digest(content),
	})
}

// handleImage serves a stored blob with the content type the caller asked
// for; the blob network does not retain mime types.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	blobID := chi.URLParam(r, "blobID")

	content, err := s.blobStore.Fetch(r.Context(), blobID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	mimeType := r.URL.Query().Get("mime")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if s.met != nil {
		s.met.BlobDownloadBytes.Add(float64(len(content)))
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(content)
}
