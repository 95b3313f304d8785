package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Evidence Composition API",
        "description": "Evidence ordering, annotation and export pipeline for field-service tickets",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Evidence", "description": "Ticket evidence listing, ordering and rotation"},
        {"name": "Canvas", "description": "Annotation sessions over evidence images"},
        {"name": "Exports", "description": "Export jobs, records and downloads"}
    ],
    "paths": {
        "/tickets/{ticketId}/evidence": {
            "get": {
                "tags": ["Evidence"],
                "summary": "List evidence in display order",
                "parameters": [
                    {"name": "ticketId", "in": "path", "required": true, "type": "string"},
                    {"name": "mime", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Evidence"],
                "summary": "Register an uploaded asset",
                "parameters": [
                    {"name": "ticketId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEvidenceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tickets/{ticketId}/evidence/order": {
            "put": {
                "tags": ["Evidence"],
                "summary": "Move one evidence item to a new position",
                "parameters": [
                    {"name": "ticketId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReorderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Reconciled listing after write failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/evidence/{id}": {
            "get": {
                "tags": ["Evidence"],
                "summary": "Get one evidence item",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Evidence"],
                "summary": "Update display name or description",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EvidenceUpdateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Evidence"],
                "summary": "Delete evidence",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/evidence/{id}/rotate": {
            "post": {
                "tags": ["Evidence"],
                "summary": "Rotate an image clockwise",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RotateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Not an image"}
                }
            }
        },
        "/evidence/{id}/sync": {
            "put": {
                "tags": ["Evidence"],
                "summary": "Record a backing-store sync outcome",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SyncStateRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/canvas/sessions": {
            "post": {
                "tags": ["Canvas"],
                "summary": "Open an annotation session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CanvasOpenRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Evidence already open or session limit reached"}
                }
            }
        },
        "/canvas/sessions/{id}": {
            "get": {
                "tags": ["Canvas"],
                "summary": "Get session state",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Canvas"],
                "summary": "Discard session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/canvas/sessions/{id}/objects": {
            "post": {
                "tags": ["Canvas"],
                "summary": "Append an annotation object",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CanvasObjectRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/canvas/sessions/{id}/undo": {
            "post": {
                "tags": ["Canvas"],
                "summary": "Remove the most recent annotation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/canvas/sessions/{id}/clear": {
            "post": {
                "tags": ["Canvas"],
                "summary": "Remove all annotations",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/canvas/sessions/{id}/save": {
            "post": {
                "tags": ["Canvas"],
                "summary": "Flatten annotations and persist the image",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tickets/{ticketId}/exports": {
            "get": {
                "tags": ["Exports"],
                "summary": "List export records",
                "parameters": [
                    {"name": "ticketId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Exports"],
                "summary": "Queue an export",
                "parameters": [
                    {"name": "ticketId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tickets/{ticketId}/exports/events": {
            "get": {
                "tags": ["Exports"],
                "summary": "Stream export record updates as server-sent events",
                "parameters": [
                    {"name": "ticketId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Event stream"}
                }
            }
        },
        "/exports/jobs/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Get job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Exports"],
                "summary": "Abandon a queued or running job",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Job already finished"}
                }
            }
        },
        "/exports/records/{id}": {
            "delete": {
                "tags": ["Exports"],
                "summary": "Delete a record and its payload",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/exports/records/{id}/download": {
            "get": {
                "tags": ["Exports"],
                "summary": "Issue a signed download URL",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Stream a payload using a signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Binary payload"}
                }
            }
        },
        "/exports/format": {
            "post": {
                "tags": ["Exports"],
                "summary": "Tidy free-form description text",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AutoFormatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/defaults": {
            "get": {
                "tags": ["Exports"],
                "summary": "Get the caller's last used report metadata",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Exports"],
                "summary": "Remember report metadata for future sessions",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportMetadata"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        }
    },
    "definitions": {
        "Evidence": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "ticketId": {"type": "string"},
                "resourcePath": {"type": "string"},
                "mimeType": {"type": "string"},
                "fileName": {"type": "string"},
                "displayName": {"type": "string"},
                "description": {"type": "string"},
                "displayOrder": {"type": "integer"},
                "manualRotation": {"type": "integer"},
                "syncState": {"type": "string"},
                "uploadedBy": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "CreateEvidenceRequest": {
            "type": "object",
            "properties": {
                "resourcePath": {"type": "string"},
                "mimeType": {"type": "string"},
                "fileName": {"type": "string"},
                "displayName": {"type": "string"},
                "description": {"type": "string"}
            },
            "required": ["resourcePath", "mimeType", "fileName"]
        },
        "ReorderRequest": {
            "type": "object",
            "properties": {
                "evidenceId": {"type": "string"},
                "position": {"type": "integer"}
            },
            "required": ["evidenceId", "position"]
        },
        "EvidenceUpdateRequest": {
            "type": "object",
            "properties": {
                "displayName": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "RotateRequest": {
            "type": "object",
            "properties": {
                "degrees": {"type": "integer"}
            }
        },
        "SyncStateRequest": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "enum": ["pending", "synced", "failed"]}
            },
            "required": ["state"]
        },
        "CanvasOpenRequest": {
            "type": "object",
            "properties": {
                "evidenceId": {"type": "string"}
            },
            "required": ["evidenceId"]
        },
        "CanvasObjectRequest": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["stroke", "shape", "text"]},
                "color": {"type": "string"},
                "width": {"type": "integer"},
                "points": {"type": "array", "items": {"$ref": "#/definitions/Point"}},
                "shape": {"type": "string"},
                "text": {"type": "string"},
                "pos": {"$ref": "#/definitions/Point"}
            },
            "required": ["kind"]
        },
        "Point": {
            "type": "object",
            "properties": {
                "x": {"type": "number"},
                "y": {"type": "number"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["pdf", "word", "zip"]},
                "evidenceIds": {"type": "array", "items": {"type": "string"}},
                "metadata": {"$ref": "#/definitions/ReportMetadata"}
            },
            "required": ["kind"]
        },
        "ReportMetadata": {
            "type": "object",
            "properties": {
                "ticketNumber": {"type": "string"},
                "ticketTitle": {"type": "string"},
                "clientName": {"type": "string"},
                "description": {"type": "string"},
                "format": {"$ref": "#/definitions/FormatPrefs"}
            }
        },
        "FormatPrefs": {
            "type": "object",
            "properties": {
                "bulleted": {"type": "boolean"},
                "bulletGlyph": {"type": "string"},
                "textColor": {"type": "string"}
            }
        },
        "AutoFormatRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string"}
            },
            "required": ["text"]
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
