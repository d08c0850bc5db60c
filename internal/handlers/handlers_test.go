package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/Brownie44l1/dept-classifier/internal/handlers"
	"github.com/Brownie44l1/dept-classifier/internal/model"
	"github.com/Brownie44l1/dept-classifier/internal/predict"
	"github.com/Brownie44l1/dept-classifier/internal/preprocess"
	"github.com/Brownie44l1/dept-classifier/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/nfnt/resize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func setupRouter(h *model.Handle) *gin.Engine {
	pre := preprocess.New(preprocess.Options{Size: 224, Filter: resize.Bilinear})
	svc := predict.NewService(h, pre, predict.Options{}, testutil.Logger())
	handler := handlers.NewHandler(svc, testutil.Logger())

	r := gin.New()
	r.GET("/health", handler.Health)
	r.POST("/predict", handler.Predict)
	r.POST("/predict/image", handler.PredictFromImage)
	return r
}

func readyHandle(scores ...float32) *model.Handle {
	return model.NewHandle(testutil.StaticModel(scores...), testutil.Labels("A", "B", "C"))
}

func postJSON(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, field string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if field != "" {
		part, err := writer.CreateFormFile(field, "photo.png")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, writer.WriteField("note", "no file here"))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/predict/image", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestPredict_Success(t *testing.T) {
	r := setupRouter(readyHandle(0.1, 0.7, 0.2))
	payload := testutil.PNGBase64(t, testutil.Gradient(50, 80))

	w := postJSON(r, `{"image_base64":"`+testutil.DataURL("image/png", payload)+`"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"department": "B",
		"confidence": 0.7,
		"all_probabilities": {"A": 0.1, "B": 0.7, "C": 0.2}
	}`, w.Body.String())
}

func TestPredict_UnmappedIndex(t *testing.T) {
	r := setupRouter(readyHandle(0.1, 0.1, 0.1, 0.7))

	w := postJSON(r, `{"image_base64":"`+testutil.PNGBase64(t, testutil.Gradient(10, 10))+`"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.PredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Manual", resp.Department)
	assert.Contains(t, resp.AllProbabilities, "Unknown_3")
	assert.NotContains(t, resp.AllProbabilities, "Manual")
}

func TestPredict_Errors(t *testing.T) {
	notImage := base64.StdEncoding.EncodeToString([]byte("just some text"))
	image := testutil.PNGBase64(t, testutil.Gradient(10, 10))

	tests := []struct {
		name           string
		handle         *model.Handle
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "model not loaded with valid image",
			handle:         &model.Handle{},
			body:           `{"image_base64":"` + image + `"}`,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "ML model not loaded",
		},
		{
			name:           "model not loaded with missing field",
			handle:         &model.Handle{},
			body:           `{}`,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "ML model not loaded",
		},
		{
			name:           "model not loaded with malformed json",
			handle:         &model.Handle{},
			body:           `{"image_base64":`,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "ML model not loaded",
		},
		{
			name:           "missing field",
			handle:         readyHandle(1, 0, 0),
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Missing image_base64",
		},
		{
			name:           "empty field",
			handle:         readyHandle(1, 0, 0),
			body:           `{"image_base64":""}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Missing image_base64",
		},
		{
			name:           "malformed json",
			handle:         readyHandle(1, 0, 0),
			body:           `not json`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Missing image_base64",
		},
		{
			name:           "wrong field type",
			handle:         readyHandle(1, 0, 0),
			body:           `{"image_base64": 42}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Missing image_base64",
		},
		{
			name:           "non image bytes",
			handle:         readyHandle(1, 0, 0),
			body:           `{"image_base64":"` + notImage + `"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid image",
		},
		{
			name:           "invalid base64",
			handle:         readyHandle(1, 0, 0),
			body:           `{"image_base64":"%%%"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid image",
		},
		{
			name: "inference error",
			handle: model.NewHandle(&testutil.FakeModel{
				RunFunc: func(context.Context, model.Tensor) ([]float32, error) {
					return nil, errors.New("onnxruntime: invalid input shape")
				},
			}, testutil.Labels("A")),
			body:           `{"image_base64":"` + image + `"}`,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Prediction failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(setupRouter(tt.handle), tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.expectedError, resp.Error)
			assert.NotEmpty(t, resp.Detail)
		})
	}
}

func TestPredict_ErrorDetails(t *testing.T) {
	w := postJSON(setupRouter(&model.Handle{}), `{}`)
	assert.Equal(t, "The ML model failed to load. Please contact the administrator.", decodeError(t, w).Detail)

	w = postJSON(setupRouter(readyHandle(1)), `{}`)
	assert.Equal(t, "Please provide 'image_base64' in the request body.", decodeError(t, w).Detail)

	w = postJSON(setupRouter(readyHandle(1)), `{"image_base64":"aGVsbG8="}`)
	assert.True(t, strings.HasPrefix(decodeError(t, w).Detail, "error preprocessing image: "))
}

func TestPredictFromImage(t *testing.T) {
	png := testutil.EncodePNG(t, testutil.Gradient(40, 40))

	tests := []struct {
		name           string
		handle         *model.Handle
		field          string
		content        []byte
		expectedStatus int
		expectedError  string
	}{
		{name: "success", handle: readyHandle(0.6, 0.3, 0.1), field: "image", content: png, expectedStatus: http.StatusOK},
		{name: "no file", handle: readyHandle(1), field: "", expectedStatus: http.StatusBadRequest, expectedError: "Missing image"},
		{name: "wrong field name", handle: readyHandle(1), field: "file", content: png, expectedStatus: http.StatusBadRequest, expectedError: "Missing image"},
		{name: "empty file", handle: readyHandle(1), field: "image", content: []byte{}, expectedStatus: http.StatusBadRequest, expectedError: "Missing image"},
		{name: "not an image", handle: readyHandle(1), field: "image", content: []byte("hello"), expectedStatus: http.StatusBadRequest, expectedError: "Invalid image"},
		{name: "model not loaded", handle: &model.Handle{}, field: "", expectedStatus: http.StatusInternalServerError, expectedError: "ML model not loaded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			setupRouter(tt.handle).ServeHTTP(w, multipartRequest(t, tt.field, tt.content))

			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedError == "" {
				var resp handlers.PredictionResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "A", resp.Department)
				assert.Equal(t, float32(0.6), resp.Confidence)
				return
			}
			assert.Equal(t, tt.expectedError, decodeError(t, w).Error)
		})
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		handle   *model.Handle
		expected handlers.HealthResponse
	}{
		{
			name:     "before load",
			handle:   &model.Handle{},
			expected: handlers.HealthResponse{Status: "unhealthy", ModelLoaded: false, DepartmentsCount: 0},
		},
		{
			name:     "after load",
			handle:   readyHandle(1, 0, 0),
			expected: handlers.HealthResponse{Status: "healthy", ModelLoaded: true, DepartmentsCount: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			setupRouter(tt.handle).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
			var resp handlers.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expected, resp)
		})
	}
}

func TestHealth_FieldNames(t *testing.T) {
	w := httptest.NewRecorder()
	setupRouter(readyHandle(1, 0, 0)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.JSONEq(t, `{"status":"healthy","model_loaded":true,"departments_count":3}`, w.Body.String())
}
