package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Student Appeals API",
        "description": "Appeal lifecycle engine: submission, review, decisions, notes, assignment and deadlines.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Appeals", "description": "Submission, status and decisions"},
        {"name": "Appeal Notes", "description": "Case notes and retraction"},
        {"name": "Appeal Assignment", "description": "Reviewer, owner and priority"},
        {"name": "Appeal Deadlines", "description": "Due dates and deadline overview"}
    ],
    "paths": {
        "/appeals": {
            "post": {
                "tags": ["Appeals"],
                "summary": "Submit an appeal",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAppealRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appeals/{key}": {
            "get": {
                "tags": ["Appeals"],
                "summary": "Get an appeal",
                "parameters": [
                    {"name": "key", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appeals/{key}/transitions": {
            "post": {
                "tags": ["Appeals"],
                "summary": "Change appeal status",
                "parameters": [
                    {"name": "key", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition or concurrent update", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appeals/{key}/decision": {
            "post": {
                "tags": ["Appeals"],
                "summary": "Record the decision",
                "parameters": [
                    {"name": "key", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Appeals"],
                "summary": "Amend a recorded decision (admin)",
                "parameters": [
                    {"name": "key", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appeals/{key}/notes": {
            "post": {
                "tags": ["Appeal Notes"],
                "summary": "Add a note",
                "parameters": [
                    {"name": "key", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddNoteRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appeals/{key}/notes/{noteId}/retract": {
            "post": {
                "tags": ["Appeal Notes"],
                "summary": "Retract a note",
                "parameters": [
                    {"name": "key", "in": "path", "required": true, "type": "string"},
                    {"name": "noteId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appeals/{key}/assignment": {
            "patch": {
                "tags": ["Appeal Assignment"],
                "summary": "Update reviewer, admin owner or priority",
                "description": "Absent fields are unchanged; null or empty string clears the reviewer or admin.",
                "parameters": [
                    {"name": "key", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appeals/bulk/assignment": {
            "post": {
                "tags": ["Appeal Assignment"],
                "summary": "Apply one assignment to many appeals",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkAssignmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "Per-case results", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appeals/{key}/deadline": {
            "put": {
                "tags": ["Appeal Deadlines"],
                "summary": "Set a deadline",
                "parameters": [
                    {"name": "key", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DeadlineRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Appeal Deadlines"],
                "summary": "Clear a deadline",
                "parameters": [
                    {"name": "key", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/ClearDeadlineRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appeals/bulk/deadline": {
            "post": {
                "tags": ["Appeal Deadlines"],
                "summary": "Set one deadline on many appeals",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkDeadlineRequest"}}
                ],
                "responses": {
                    "200": {"description": "Per-case results", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appeals/deadlines": {
            "get": {
                "tags": ["Appeal Deadlines"],
                "summary": "Bucket outstanding appeals by deadline",
                "parameters": [
                    {"name": "horizonDays", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateAppealRequest": {
            "type": "object",
            "required": ["studentId", "title", "appealType", "description", "grounds"],
            "properties": {
                "studentId": {"type": "string"},
                "title": {"type": "string"},
                "appealType": {"type": "string"},
                "description": {"type": "string"},
                "grounds": {"type": "string"},
                "desiredOutcome": {"type": "string"},
                "adviser": {
                    "type": "object",
                    "properties": {"name": {"type": "string"}, "email": {"type": "string"}}
                },
                "evidenceRefs": {"type": "array", "items": {"type": "string"}},
                "declarationAccepted": {"type": "boolean"},
                "deadlineAcknowledged": {"type": "boolean"},
                "finalConfirmation": {"type": "boolean"}
            }
        },
        "TransitionRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["submitted", "under_review", "awaiting_information", "decision_made", "resolved", "rejected"]},
                "note": {"type": "object", "properties": {"content": {"type": "string"}}}
            }
        },
        "DecisionRequest": {
            "type": "object",
            "required": ["outcome", "reason"],
            "properties": {
                "outcome": {"type": "string", "enum": ["upheld", "partially_upheld", "rejected", "withdrawn"]},
                "reason": {"type": "string"}
            }
        },
        "AddNoteRequest": {
            "type": "object",
            "required": ["content"],
            "properties": {
                "content": {"type": "string"},
                "isInternal": {"type": "boolean"}
            }
        },
        "AssignmentRequest": {
            "type": "object",
            "properties": {
                "reviewer": {"type": "string", "x-nullable": true},
                "admin": {"type": "string", "x-nullable": true},
                "priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]}
            }
        },
        "BulkAssignmentRequest": {
            "type": "object",
            "properties": {
                "caseKeys": {"type": "array", "items": {"type": "string"}},
                "assignment": {"$ref": "#/definitions/AssignmentRequest"}
            }
        },
        "DeadlineRequest": {
            "type": "object",
            "required": ["deadline"],
            "properties": {
                "deadline": {"type": "string", "format": "date-time"},
                "reason": {"type": "string"}
            }
        },
        "ClearDeadlineRequest": {
            "type": "object",
            "properties": {"reason": {"type": "string"}}
        },
        "BulkDeadlineRequest": {
            "type": "object",
            "properties": {
                "caseKeys": {"type": "array", "items": {"type": "string"}},
                "deadline": {"type": "string", "format": "date-time"},
                "reason": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
