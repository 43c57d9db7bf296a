package annotator

// AnnotationRequest 图像内容不做校验，原样交给推理后端
type AnnotationRequest struct {
	TeethImage string `json:"teeth_image"`
}

// AnnotationBody is the wire form of AnnotationRequest. The pointer makes
// "required" mean present and non-null, so "" still reaches the backend.
type AnnotationBody struct {
	TeethImage *string `json:"teeth_image" binding:"required"`
}

func (b AnnotationBody) Request() AnnotationRequest {
	if b.TeethImage == nil {
		return AnnotationRequest{}
	}
	return AnnotationRequest{TeethImage: *b.TeethImage}
}

type BoxResult struct {
	XMin   float64 `json:"x_min"`
	YMin   float64 `json:"y_min"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AnnotationResponse keeps parallel sequences and Results index-aligned.
// Sequences are never nil so they encode as [] on failure.
type AnnotationResponse struct {
	XMin        []float64   `json:"x_min"`
	YMin        []float64   `json:"y_min"`
	Width       []float64   `json:"width"`
	Height      []float64   `json:"height"`
	TeethNumber []int       `json:"teeth_number"`
	Success     bool        `json:"success"`
	Error       string      `json:"error"`
	Results     []BoxResult `json:"results"`
}

func emptyResponse(capacity int) AnnotationResponse {
	return AnnotationResponse{
		XMin:        make([]float64, 0, capacity),
		YMin:        make([]float64, 0, capacity),
		Width:       make([]float64, 0, capacity),
		Height:      make([]float64, 0, capacity),
		TeethNumber: make([]int, 0, capacity),
		Results:     make([]BoxResult, 0, capacity),
	}
}

// FailureResponse is the failure shape for errors raised outside ProcessImage,
// such as a request body that does not bind.
func FailureResponse(err error) AnnotationResponse {
	return Fail(err).Response()
}
