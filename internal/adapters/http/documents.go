package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

// multipartMemory bounds how much of a multipart body is kept in memory
// before spilling to temporary files.
const multipartMemory = 8 << 20

type ingestResponse struct {
	Stored   int                   `json:"stored"`
	Rejected int                   `json:"rejected"`
	Results  []domain.IngestResult `json:"results"`
}

type deleteAllResponse struct {
	Deleted int `json:"deleted"`
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	filter, err := bindFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	docs, err := rt.services.Documents.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.DocumentSummary{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error:  fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
				Reason: "invalid_input",
			})
			return
		}
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "parse multipart form", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := append(r.MultipartForm.File["files"], r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "upload documents", errors.New("multipart field 'files' is required")))
		return
	}

	uploads := make([]domain.Upload, 0, len(headers))
	for _, header := range headers {
		content, err := readPart(header)
		if err != nil {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "read upload "+header.Filename, err))
			return
		}
		uploads = append(uploads, domain.Upload{Filename: header.Filename, Content: content})
	}

	results := rt.services.Ingest.IngestBatch(r.Context(), uploads)
	resp := ingestResponse{Results: results}
	for _, res := range results {
		outcome := "stored"
		var size int64
		var lineItems int
		if res.OK() {
			resp.Stored++
			if res.Document != nil {
				size = res.Document.SizeBytes
				lineItems = len(res.Document.LineItems)
			}
		} else {
			resp.Rejected++
			outcome = res.Reason
		}
		if rt.metrics != nil {
			rt.metrics.RecordIngest(serviceName, string(res.FileType), outcome, size, lineItems)
		}
	}

	status := http.StatusOK
	if resp.Stored == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (rt *Router) deleteAllDocuments(w http.ResponseWriter, r *http.Request) {
	n, err := rt.services.Documents.DeleteAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteAllResponse{Deleted: n})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := rt.services.Documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rt.services.Documents.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) downloadDocument(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	body, filename, err := rt.services.Documents.Download(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		rt.logger.Warn("download_stream_failed", "document_id", id, "error", err)
	}
}

func (rt *Router) exportDocuments(w http.ResponseWriter, r *http.Request) {
	format, err := bindString(r, "format")
	if err != nil {
		writeError(w, err)
		return
	}
	format = strings.ToLower(format)
	if format == "" {
		format = "csv"
	}
	exporter, ok := rt.services.Exporters[format]
	if !ok {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "export documents", fmt.Errorf("unsupported export format %q", format)))
		return
	}
	filter, err := bindFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	header, rows, err := rt.services.Documents.ExportRows(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	payload, err := exporter.Export(r.Context(), header, rows)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordExport(serviceName, format, len(rows))
	}

	filename := "documents-" + time.Now().UTC().Format("20060102-150405") + "." + exporter.Extension()
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func documentIDFromPath(r *http.Request) (int64, error) {
	raw := r.PathValue("document_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse document id", fmt.Errorf("invalid document id %q", raw))
	}
	return id, nil
}
