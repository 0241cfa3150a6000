package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/internal/service"
	"github.com/amirk1998/daybook/pkg/errors"
)

func (s *Server) handleTogglePin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	note, err := s.notes.TogglePin(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "note updated", note)
}

func (s *Server) handleToggleTodo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	todo, err := s.todos.Toggle(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "todo updated", todo)
}

func (s *Server) handleReorderTodos(w http.ResponseWriter, r *http.Request) {
	var req models.ReorderTodosRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := s.todos.Reorder(r.Context(), userIDFrom(r.Context()), &req); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "todos reordered", nil)
}

// diaryEntries adapts the diary service to the generic resource contract.
type diaryEntries struct {
	svc *service.DiaryService
}

func (d diaryEntries) List(ctx context.Context, f models.DiaryListFilters) ([]*models.DiaryEntry, error) {
	return d.svc.ListEntries(ctx, f)
}

func (d diaryEntries) Get(ctx context.Context, userID, id int) (*models.DiaryEntry, error) {
	return d.svc.GetEntry(ctx, userID, id)
}

func (d diaryEntries) Create(ctx context.Context, userID int, req *models.CreateDiaryEntryRequest) (*models.DiaryEntry, error) {
	return d.svc.CreateEntry(ctx, userID, req)
}

func (d diaryEntries) Update(ctx context.Context, userID, id int, req *models.UpdateDiaryEntryRequest) (*models.DiaryEntry, error) {
	return d.svc.UpdateEntry(ctx, userID, id, req)
}

func (d diaryEntries) Delete(ctx context.Context, userID, id int) error {
	return d.svc.DeleteEntry(ctx, userID, id)
}

func (s *Server) handleDiaryStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.diary.Status(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "diary status", status)
}

func (s *Server) handleSetPin(w http.ResponseWriter, r *http.Request) {
	var req models.SetPinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := s.diary.SetPin(r.Context(), sessionFrom(r.Context()), &req); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "diary PIN set", nil)
}

func (s *Server) handleVerifyPin(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyPinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	status, err := s.diary.VerifyPin(r.Context(), sessionFrom(r.Context()), &req)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "diary unlocked", status)
}

func (s *Server) handleLockDiary(w http.ResponseWriter, r *http.Request) {
	s.diary.Lock(sessionFrom(r.Context()))
	respond(w, http.StatusOK, "diary locked", nil)
}

func (s *Server) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	if err := s.diary.RequestOTP(r.Context(), sessionFrom(r.Context())); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "a reset code has been sent to your email", nil)
}

func (s *Server) handleConfirmOTP(w http.ResponseWriter, r *http.Request) {
	var req models.ConfirmOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := s.diary.ConfirmOTP(r.Context(), sessionFrom(r.Context()), &req); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "diary PIN reset", nil)
}

const multipartMemory = 1 << 20

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadMax+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			fail(w, r, errors.NewAppError(errors.ErrFileTooLarge, "upload too large", http.StatusRequestEntityTooLarge))
			return
		}
		fail(w, r, errors.Validation("request must be multipart/form-data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		fail(w, r, errors.Validation("image file is required"))
		return
	}
	defer file.Close()

	req := &service.UploadRequest{
		File:         file,
		OriginalName: header.Filename,
		ImageType:    r.FormValue("image_type"),
	}
	if raw := r.FormValue("related_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			fail(w, r, errors.Validation("related_id must be an integer"))
			return
		}
		req.RelatedID = &id
	}

	image, err := s.images.Upload(r.Context(), userIDFrom(r.Context()), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "image uploaded", image)
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	filters, err := imageFilters(r, userIDFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	images, err := s.images.List(r.Context(), filters)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "images retrieved", images)
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	image, err := s.images.Get(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "image retrieved", image)
}

func (s *Server) handleImageFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	image, f, err := s.images.Open(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", image.MimeType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, image.StoredName, image.CreatedAt, f)
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := s.images.Delete(r.Context(), userIDFrom(r.Context()), id); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "image deleted", nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "ok", map[string]string{"status": "healthy"})
}
