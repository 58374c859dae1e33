package jsonapi

import (
	"encoding/json"
	"net/http"
)

// WriteDocument writes doc with the JSON:API content type. Encoding errors
// are ignored; the status line has already been sent.
func WriteDocument(w http.ResponseWriter, status int, doc Document) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}

// WriteResource writes a single resource response.
func WriteResource(w http.ResponseWriter, status int, r Resource) {
	WriteDocument(w, status, Document{Data: r})
}

// WriteCollection writes a collection response. A nil slice is written
// as an empty array.
func WriteCollection(w http.ResponseWriter, status int, resources []Resource, meta Meta) {
	if resources == nil {
		resources = []Resource{}
	}
	WriteDocument(w, status, Document{Data: resources, Meta: meta})
}

// WriteCreated writes r with 201 Created. The Location header is taken from
// the resource's self link when it has one.
func WriteCreated(w http.ResponseWriter, r Resource) {
	if r.Links != nil && r.Links.Self != "" {
		w.Header().Set("Location", r.Links.Self)
	}
	WriteResource(w, http.StatusCreated, r)
}

// WriteMeta writes a document holding only meta members.
func WriteMeta(w http.ResponseWriter, status int, meta Meta) {
	WriteDocument(w, status, Document{Meta: meta})
}

// WriteError writes an error document. The HTTP status is the first
// error's status; no errors at all is reported as an internal error.
func WriteError(w http.ResponseWriter, errs ...Error) {
	if len(errs) == 0 {
		errs = []Error{ErrInternal()}
	}

	status := errs[0].StatusCode()
	if status == 0 {
		status = http.StatusInternalServerError
	}

	WriteDocument(w, status, Document{Errors: errs})
}
