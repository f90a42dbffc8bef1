package server

import "github.com/raysh454/a11yscan/internal/model"

// ScanRequest is the body of POST /scan and POST /scan-cookie.
type ScanRequest = model.ScanRequest

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"url must start with http:// or https://"`
}

// ComplianceListResponse lists every known jurisdiction.
type ComplianceListResponse struct {
	Countries []model.ComplianceInfo `json:"countries"`
}

// WSError is sent over the scan websocket when the scan cannot start.
type WSError struct {
	Type  string `json:"type" example:"error"`
	Error string `json:"error"`
}
