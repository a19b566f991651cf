package handlers

import (
	"github.com/tunehaus/backstage/internal/models"
	"github.com/tunehaus/backstage/pkg/response"
	"github.com/tunehaus/backstage/pkg/types"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespMembership wraps a single membership in the standard envelope.
type RespMembership struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Membership        `json:"data"`
}

// RespMemberships wraps a membership list in the standard envelope.
type RespMemberships struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Membership      `json:"data"`
}

// RespAccessInfo wraps an access check result in the standard envelope.
type RespAccessInfo struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    types.AccessInfo         `json:"data"`
}

// RespTransactions wraps a paged transaction list in the standard envelope.
type RespTransactions struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    struct {
		Items []models.Transaction `json:"items"`
		Total int64                `json:"total"`
	} `json:"data"`
}
