package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/and161185/kodeverk-admin/internal/errs"
)

const (
	problemContentType = "application/problem+json"
	conflictType       = "urn:kodeverk:problem:versjonskonflikt"
)

// Problem is an RFC 9457 problem document extended with conflict details.
type Problem struct {
	Type            string `json:"type"`
	Title           string `json:"title"`
	Status          int    `json:"status"`
	Detail          string `json:"detail"`
	Instance        string `json:"instance,omitempty"`
	LastModifiedBy  string `json:"lastModifiedBy,omitempty"`
	LastModifiedAt  string `json:"lastModifiedAt,omitempty"`
	ExpectedVersion string `json:"expectedVersion,omitempty"`
	CurrentVersion  string `json:"currentVersion,omitempty"`
}

func conflictProblem(ce *errs.ConflictError, requestID string) Problem {
	at := ce.LastModifiedAt.UTC().Format(time.RFC3339)
	return Problem{
		Type:   conflictType,
		Title:  "Versjonskonflikt",
		Status: http.StatusConflict,
		Detail: fmt.Sprintf("Dokumentet ble endret av %s %s etter at du hentet det. Hent siste versjon, før inn endringene dine og lagre på nytt.",
			ce.LastModifiedBy, at),
		Instance:        requestID,
		LastModifiedBy:  ce.LastModifiedBy,
		LastModifiedAt:  at,
		ExpectedVersion: ce.ExpectedVersion,
		CurrentVersion:  ce.CurrentVersion,
	}
}

func writeProblem(c *gin.Context, p Problem) {
	raw, err := json.Marshal(p)
	if err != nil {
		c.Status(p.Status)
		return
	}
	c.Data(p.Status, problemContentType, raw)
}
