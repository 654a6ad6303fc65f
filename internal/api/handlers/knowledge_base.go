package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/cloo-solutions/kbrelay/internal/api"
	"github.com/cloo-solutions/kbrelay/internal/api/middleware"
	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/cloo-solutions/kbrelay/internal/service"
)

const (
	defaultMultipartMemory int64 = 32 << 20

	msgUploaded       = "Files uploaded successfully"
	msgCleared        = "Knowledge Base Cleared successfully."
	msgNotExists      = "The Knowledge Base does not exists."
	msgClearFailed    = "The Knowledge Base could not be cleared."
	msgMissingParams  = "Missing parameters in request"
	msgInvalidUpload  = "invalid multipart form"
	uploadFileField   = "file"
	uploadKBNameField = "kb_name"
)

type KnowledgeBaseService interface {
	Upload(ctx context.Context, kbName string, files []service.UploadFile) (*service.UploadResult, error)
	List(ctx context.Context, kbName string) (*service.ListResult, error)
	Chat(ctx context.Context, kbName, prompt string) (*service.ChatResult, error)
	Clear(ctx context.Context, kbName string) (*service.ClearResult, error)
	KBPath(kbName string) string
}

type KnowledgeBaseHandler struct {
	svc             KnowledgeBaseService
	multipartMemory int64
}

func NewKnowledgeBaseHandler(svc KnowledgeBaseService) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{svc: svc, multipartMemory: defaultMultipartMemory}
}

type KBRequest struct {
	KBName string `json:"kb_name"`
}

type ChatRequest struct {
	KBName     string `json:"kb_name"`
	UserPrompt string `json:"user_prompt"`
}

type UploadResponse struct {
	Message string `json:"message"`
	KBName  string `json:"kb_name"`
	KBPath  string `json:"kb_path"`
}

type ListResponse struct {
	KBList  []string `json:"kb_list"`
	KBName  string   `json:"kb_name"`
	Message string   `json:"message,omitempty"`
}

type ChatResponse struct {
	Content string `json:"content"`
	KBName  string `json:"kb_name"`
}

type ClearResponse struct {
	Message string `json:"message"`
	KBName  string `json:"kb_name"`
	KBPath  string `json:"kb_path"`
}

// Upload handles POST /receive-file.
func (h *KnowledgeBaseHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.multipartMemory); err != nil {
		api.Error(w, http.StatusBadRequest, msgInvalidUpload)
		return
	}
	defer r.MultipartForm.RemoveAll()

	kbName := r.FormValue(uploadKBNameField)
	middleware.SetKBName(r.Context(), kbName)

	files, closeAll, err := uploadFiles(r.MultipartForm)
	defer closeAll()
	if err != nil {
		api.Error(w, http.StatusBadRequest, msgInvalidUpload)
		return
	}

	result, err := h.svc.Upload(r.Context(), kbName, files)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	middleware.SetKBName(r.Context(), result.KBName)

	api.JSON(w, http.StatusOK, UploadResponse{
		Message: msgUploaded,
		KBName:  result.KBName,
		KBPath:  result.KBPath,
	})
}

// uploadFiles opens every part of the file field. Parts sent without a
// filename arrive as plain form values and are passed on with an empty name.
func uploadFiles(form *multipart.Form) ([]service.UploadFile, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	var files []service.UploadFile
	for _, fh := range form.File[uploadFileField] {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		opened = append(opened, f)
		files = append(files, service.UploadFile{Filename: fh.Filename, Content: f})
	}
	for _, v := range form.Value[uploadFileField] {
		files = append(files, service.UploadFile{Filename: "", Content: strings.NewReader(v)})
	}
	return files, closeAll, nil
}

// List handles GET /listKB.
func (h *KnowledgeBaseHandler) List(w http.ResponseWriter, r *http.Request) {
	var req KBRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.KBName == "" {
		api.Error(w, http.StatusBadRequest, msgMissingParams)
		return
	}
	middleware.SetKBName(r.Context(), req.KBName)

	result, err := h.svc.List(r.Context(), req.KBName)
	if err != nil {
		if errors.Is(err, domain.ErrMissingParameter) || errors.Is(err, domain.ErrInvalidKBName) {
			api.Error(w, http.StatusBadRequest, msgMissingParams)
			return
		}
		api.HandleError(w, err)
		return
	}

	resp := ListResponse{KBList: result.Files, KBName: result.KBName}
	if len(result.Files) == 0 {
		resp.Message = msgNotExists
	}
	api.JSON(w, http.StatusOK, resp)
}

// Chat handles POST /chat.
func (h *KnowledgeBaseHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, msgMissingParams)
		return
	}
	middleware.SetKBName(r.Context(), req.KBName)

	result, err := h.svc.Chat(r.Context(), req.KBName, req.UserPrompt)
	if err != nil {
		log.Printf("chat: kb %s: %v", req.KBName, err)
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, ChatResponse{Content: result.Content, KBName: result.KBName})
}

// Clear handles POST /clear.
func (h *KnowledgeBaseHandler) Clear(w http.ResponseWriter, r *http.Request) {
	var req KBRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.KBName == "" {
		api.Error(w, http.StatusBadRequest, msgMissingParams)
		return
	}
	middleware.SetKBName(r.Context(), req.KBName)

	result, err := h.svc.Clear(r.Context(), req.KBName)
	if err != nil {
		log.Printf("clear: kb %s: %v", req.KBName, err)
		status := api.DomainErrorToHTTP(err)
		switch status {
		case http.StatusBadRequest:
			api.Error(w, status, msgMissingParams)
		case http.StatusNotFound:
			api.JSON(w, status, ClearResponse{Message: msgNotExists, KBName: req.KBName, KBPath: h.svc.KBPath(req.KBName)})
		default:
			api.JSON(w, status, ClearResponse{Message: msgClearFailed, KBName: req.KBName, KBPath: h.svc.KBPath(req.KBName)})
		}
		return
	}

	api.JSON(w, http.StatusOK, ClearResponse{Message: msgCleared, KBName: result.KBName, KBPath: result.KBPath})
}
