package common

type SuccessResponse struct {
	Data interface{} `json:"data"`
}

func NewSuccessResponse(data interface{}) *SuccessResponse {
	return &SuccessResponse{
		Data: data,
	}
}

// OKResponse is the minimal acknowledgement body.
type OKResponse struct {
	OK bool `json:"ok"`
}

func NewOKResponse() *OKResponse {
	return &OKResponse{OK: true}
}
