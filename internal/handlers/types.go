package handlers

type PredictionRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type PredictionResponse struct {
	Department       string             `json:"department"`
	Confidence       float32            `json:"confidence"`
	AllProbabilities map[string]float32 `json:"all_probabilities"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

type HealthResponse struct {
	Status           string `json:"status"`
	ModelLoaded      bool   `json:"model_loaded"`
	DepartmentsCount int    `json:"departments_count"`
}
