package testutil

import (
	"net/http"
	"time"

	id "medverify/pkg/domain"
	"medverify/pkg/requestcontext"
)

// WithDoctor simulates what the bearer-auth middleware does for an
// authenticated doctor request.
func WithDoctor(req *http.Request, doctorID id.DoctorID) *http.Request {
	return req.WithContext(requestcontext.WithDoctorID(req.Context(), doctorID))
}

// AtTime pins the request-scoped clock, which the Decision Evaluator uses as
// "today".
func AtTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
