package model

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the success payload of POST /api/ask.
type AskResponse struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Cached    bool       `json:"cached"`
}
