package daemon

import (
	"errors"
	"net/http"
	"strings"

	"crewbe/internal/api"
	"crewbe/internal/logging"
	"crewbe/internal/upload"
)

const defaultContentType = "video/webm"

func (s *apiServer) handlePresign(w http.ResponseWriter, r *http.Request) {
	var req api.PresignRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	contentType := strings.TrimSpace(req.FileType)
	if contentType == "" {
		contentType = defaultContentType
	}
	key := strings.TrimSpace(req.S3Key)
	switch {
	case key == "":
		key = s.keys.New(contentType)
	case !upload.ValidKey(s.prefix, key):
		s.writeError(w, http.StatusBadRequest, "invalid key", "s3Key must live under "+s.prefix+"/")
		return
	}

	url, err := s.storage.PresignPut(r.Context(), key, contentType, s.credTTL)
	if err != nil {
		logging.ErrorWithContext(s.requestLogger(r), "presign failed", "presign_failed",
			logging.Error(err),
			logging.String(logging.FieldStorageKey, key),
			logging.String(logging.FieldErrorHint, "check the daemon's AWS credentials and bucket"),
		)
		s.writeError(w, http.StatusInternalServerError, "failed to generate presigned url", err.Error())
		return
	}
	s.requestLogger(r).Info("write credential issued",
		logging.String(logging.FieldEventType, "presign_issued"),
		logging.String(logging.FieldStorageKey, key),
		logging.Duration("ttl", s.credTTL),
	)
	s.writeJSON(w, http.StatusOK, api.PresignResponse{
		Success:      true,
		PresignedURL: url,
		S3Key:        key,
		Bucket:       s.storage.Bucket(),
		ExpiresIn:    int(s.credTTL.Seconds()),
		Timestamp:    api.Now(),
	})
}

// handleDirectUpload stores multipart field "video" under a key the server
// chooses.
func (s *apiServer) handleDirectUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "file too large", "recording exceeds the upload limit")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid multipart body", err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("video")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "no video file", "multipart field \"video\" is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = defaultContentType
	}
	key := s.keys.New(contentType)
	if err := s.storage.Put(r.Context(), key, contentType, file, header.Size); err != nil {
		logging.ErrorWithContext(s.requestLogger(r), "direct upload failed", "direct_upload_failed",
			logging.Error(err),
			logging.String(logging.FieldStorageKey, key),
			logging.Int64("bytes", header.Size),
			logging.String(logging.FieldErrorHint, "check the daemon's AWS credentials and bucket"),
		)
		s.writeError(w, http.StatusInternalServerError, "upload failed", err.Error())
		return
	}
	s.requestLogger(r).Info("recording stored",
		logging.String(logging.FieldEventType, "direct_upload_stored"),
		logging.String(logging.FieldStorageKey, key),
		logging.Int64("bytes", header.Size),
	)
	s.writeJSON(w, http.StatusOK, api.DirectUploadResponse{
		Success:   true,
		S3Key:     key,
		Bucket:    s.storage.Bucket(),
		FileSize:  header.Size,
		Timestamp: api.Now(),
	})
}

func (s *apiServer) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	if !upload.ValidKey("", key) {
		s.writeError(w, http.StatusBadRequest, "invalid key", "a storage key is required")
		return
	}
	info, err := s.storage.Head(r.Context(), key)
	if err != nil {
		s.requestLogger(r).Warn("upload status check failed",
			logging.Error(err),
			logging.String(logging.FieldStorageKey, key),
		)
		s.writeError(w, http.StatusInternalServerError, "status check failed", err.Error())
		return
	}
	resp := api.UploadStatusResponse{
		Success:   true,
		Exists:    info.Exists,
		S3Key:     key,
		Timestamp: api.Now(),
	}
	if info.Exists {
		resp.FileSize = info.Size
		resp.LastModified = api.FormatTime(info.LastModified)
		resp.ContentType = info.ContentType
	}
	s.writeJSON(w, http.StatusOK, resp)
}
