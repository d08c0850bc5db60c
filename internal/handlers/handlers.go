// Package handlers exposes the prediction service over HTTP.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/Brownie44l1/dept-classifier/internal/predict"
	"github.com/gin-gonic/gin"
)

// Predictor is the part of predict.Service the handlers use.
type Predictor interface {
	Predict(ctx context.Context, imageBase64 string) (*predict.Prediction, error)
	PredictImage(ctx context.Context, data []byte) (*predict.Prediction, error)
	Status() predict.Status
}

type Handler struct {
	svc Predictor
	log *slog.Logger
}

func NewHandler(svc Predictor, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Health reports whether the model is loaded. It always answers 200.
func (h *Handler) Health(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	st := h.svc.Status()
	status := "unhealthy"
	if st.Ready {
		status = "healthy"
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:           status,
		ModelLoaded:      st.Ready,
		DepartmentsCount: st.Labels,
	})
}

// Predict classifies the JSON body {"image_base64": "..."}.
func (h *Handler) Predict(c *gin.Context) {
	var req PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if h.tooLarge(c, err) {
			return
		}
		// an unreadable body is treated as a missing payload
		h.log.Warn("failed to parse prediction request", "error", err, "remote_addr", c.ClientIP())
		req = PredictionRequest{}
	}

	result, err := h.svc.Predict(c.Request.Context(), req.ImageBase64)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(result))
}

// PredictFromImage classifies a multipart upload in the "image" field.
func (h *Handler) PredictFromImage(c *gin.Context) {
	var data []byte

	file, err := c.FormFile(predict.FieldImage)
	if err != nil {
		if h.tooLarge(c, err) {
			return
		}
		h.log.Warn("no image file in upload", "error", err, "remote_addr", c.ClientIP())
	} else {
		data, err = readUpload(file)
		if err != nil {
			if h.tooLarge(c, err) {
				return
			}
			h.log.Error("failed to read uploaded image", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:  predict.KindInvalidImage.String(),
				Detail: err.Error(),
			})
			return
		}
		h.log.Debug("received image upload", "filename", file.Filename, "size", file.Size)
	}

	result, err := h.svc.PredictImage(c.Request.Context(), data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(result))
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}

// tooLarge answers 413 when err comes from the body size limit. A service
// without a model still reports that first.
func (h *Handler) tooLarge(c *gin.Context, err error) bool {
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) || !h.svc.Status().Ready {
		return false
	}
	h.log.Warn("request body too large", "limit", maxErr.Limit, "remote_addr", c.ClientIP())
	c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
		Error:  "Request too large",
		Detail: fmt.Sprintf("Request body exceeds %d bytes.", maxErr.Limit),
	})
	return true
}

func (h *Handler) fail(c *gin.Context, err error) {
	var perr *predict.Error
	if !errors.As(err, &perr) {
		perr = &predict.Error{Kind: predict.KindPredictionFailed, Detail: err.Error(), Err: err}
	}

	status := statusFor(perr.Kind)
	if status >= http.StatusInternalServerError {
		h.log.Error("prediction request failed", "error", perr.Title(), "detail", perr.Detail)
	} else {
		h.log.Warn("prediction request rejected", "error", perr.Title(), "detail", perr.Detail,
			"remote_addr", c.ClientIP())
	}
	c.JSON(status, ErrorResponse{Error: perr.Title(), Detail: perr.Detail})
}

func statusFor(k predict.Kind) int {
	if k.ClientError() {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func toResponse(p *predict.Prediction) PredictionResponse {
	return PredictionResponse{
		Department:       p.Department,
		Confidence:       p.Confidence,
		AllProbabilities: p.Probabilities,
	}
}
