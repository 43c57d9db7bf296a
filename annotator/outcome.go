package annotator

import (
	"errors"

	iface "TeethAnnotationServer/interface"
)

var errUnknown = errors.New("unknown inference failure")

// Outcome is the result of one inference call: either detections or an error.
type Outcome struct {
	detections []iface.Detection
	err        error
}

func Ok(detections []iface.Detection) Outcome {
	return Outcome{detections: detections}
}

func Fail(err error) Outcome {
	if err == nil {
		err = errUnknown
	}
	return Outcome{err: err}
}

func (o Outcome) Err() error {
	return o.err
}

// Response converts center-form detections to corner-form boxes.
func (o Outcome) Response() AnnotationResponse {
	if o.err != nil {
		resp := emptyResponse(0)
		resp.Error = o.err.Error()
		if resp.Error == "" {
			resp.Error = errUnknown.Error()
		}
		return resp
	}
	resp := emptyResponse(len(o.detections))
	for _, det := range o.detections {
		xMin, yMin := CornerFromCenter(det.X, det.Y, det.Width, det.Height)
		resp.XMin = append(resp.XMin, xMin)
		resp.YMin = append(resp.YMin, yMin)
		resp.Width = append(resp.Width, det.Width)
		resp.Height = append(resp.Height, det.Height)
		resp.TeethNumber = append(resp.TeethNumber, det.ClassID)
		resp.Results = append(resp.Results, BoxResult{
			XMin:   xMin,
			YMin:   yMin,
			Width:  det.Width,
			Height: det.Height,
		})
	}
	resp.Success = true
	return resp
}

func CornerFromCenter(x, y, width, height float64) (float64, float64) {
	return x - width/2, y - height/2
}
