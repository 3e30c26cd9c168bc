package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"mejaku-order-service/internal/storage"
	"mejaku-order-service/internal/utils"
	"mejaku-order-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	menuImageMaxSide = 1280
	menuThumbSize    = 400
	jpegQuality      = 82
)

func (h *Handler) makeObjectStore(ctx context.Context) (*storage.ObjectStore, error) {
	return storage.NewObjectStore(ctx, storage.Config{
		Endpoint:        h.Config.ObjectStoreEndpoint,
		Region:          h.Config.ObjectStoreRegion,
		AccessKeyID:     h.Config.ObjectStoreAccessKeyID,
		SecretAccessKey: h.Config.ObjectStoreSecretAccessKey,
		Bucket:          h.Config.ObjectStoreBucket,
		PublicBaseURL:   h.Config.ObjectStorePublicBaseURL,
		StorageClass:    h.Config.ObjectStoreStorageClass,
	})
}

// AdminMenuUploadImage accepts a multipart image, re-encodes it into a
// display JPEG plus a square thumbnail, pushes both to the object store and
// records the public URLs on the menu row.
func (h *Handler) AdminMenuUploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	menuID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid menu id")
		return
	}

	var exists bool
	if err := h.DB.QueryRow(ctx, `select exists(select 1 from menus where id = $1 and deleted_at is null)`, menuID).Scan(&exists); err != nil {
		h.Logger.Error("menu existence check failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to upload image")
		return
	}
	if !exists {
		response.Error(w, http.StatusNotFound, "MENU_NOT_FOUND", "Menu item not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxFileSizeBytes)
	if err := r.ParseMultipartForm(h.Config.MaxFileSizeBytes); err != nil {
		response.Error(w, http.StatusBadRequest, "FILE_TOO_LARGE", "Image exceeds the upload size limit")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.Logger.Error("upload read failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read uploaded image")
		return
	}
	if !utils.ValidateImageContentType(utils.DetectContentType(data)) {
		response.Error(w, http.StatusBadRequest, "UNSUPPORTED_MEDIA", "Unsupported image format")
		return
	}

	display, meta, err := utils.EncodeJpegFitInside(data, menuImageMaxSide, jpegQuality)
	if err != nil {
		h.Logger.Warn("image decode failed", zap.String("filename", header.Filename), zapError(err))
		response.Error(w, http.StatusBadRequest, "UNSUPPORTED_MEDIA", "Could not decode the uploaded image")
		return
	}
	thumb, _, err := utils.EncodeJpegCoverSquare(data, menuThumbSize, jpegQuality)
	if err != nil {
		h.Logger.Warn("thumbnail encode failed", zap.String("filename", header.Filename), zapError(err))
		response.Error(w, http.StatusBadRequest, "UNSUPPORTED_MEDIA", "Could not decode the uploaded image")
		return
	}

	store, err := h.makeObjectStore(ctx)
	if err != nil {
		h.Logger.Error("object store init failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Image storage is not available")
		return
	}

	imageKey := fmt.Sprintf("menus/%d/image.jpg", menuID)
	thumbKey := fmt.Sprintf("menus/%d/thumb.jpg", menuID)
	const cacheControl = "public, max-age=86400"

	imageURL, err := store.PutObject(ctx, imageKey, display, "image/jpeg", cacheControl)
	if err != nil {
		h.Logger.Error("image upload failed", zap.String("key", imageKey), zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store image")
		return
	}
	thumbURL, err := store.PutObject(ctx, thumbKey, thumb, "image/jpeg", cacheControl)
	if err != nil {
		h.Logger.Error("thumbnail upload failed", zap.String("key", thumbKey), zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store image")
		return
	}

	if _, err := h.DB.Exec(ctx, `update menus set image_url = $1, thumb_url = $2, updated_at = now() where id = $3`, imageURL, thumbURL, menuID); err != nil {
		h.Logger.Error("menu image url update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store image")
		return
	}

	h.Logger.Info("menu image uploaded",
		zap.Int64("menu_id", menuID),
		zap.Intp("source_width", meta.Width),
		zap.Intp("source_height", meta.Height),
	)

	response.Success(w, map[string]any{
		"imageUrl": imageURL,
		"thumbUrl": thumbURL,
	})
}

func (h *Handler) AdminMenuDeleteImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	menuID, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid menu id")
		return
	}

	tag, err := h.DB.Exec(ctx, `update menus set image_url = null, thumb_url = null, updated_at = now() where id = $1 and deleted_at is null`, menuID)
	if err != nil {
		h.Logger.Error("menu image url clear failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove image")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "MENU_NOT_FOUND", "Menu item not found")
		return
	}

	store, err := h.makeObjectStore(ctx)
	if err != nil {
		h.Logger.Error("object store init failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Image storage is not available")
		return
	}
	if err := store.DeletePrefix(ctx, fmt.Sprintf("menus/%d/", menuID)); err != nil {
		h.Logger.Warn("object delete failed", zap.Int64("menu_id", menuID), zapError(err))
	}

	response.Success(w, map[string]any{"deleted": true})
}
