// Package docs holds the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "codebuddy maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/models": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "models"
                ],
                "summary": "List configured language models and model files on disk",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.ModelsResponse"
                        }
                    }
                }
            }
        },
        "/status": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "models"
                ],
                "summary": "Resident models, performance mode and host profile",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.StatusResponse"
                        }
                    }
                }
            }
        },
        "/detect": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "generation"
                ],
                "summary": "Detect the target language of a prompt",
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Prompt",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/types.DetectRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.DetectResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/generate": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "generation"
                ],
                "summary": "Generate code and return it without a markdown fence",
                "description": "Blocks until generation completes. The language is detected when omitted or \"auto\".",
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Generation request",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/types.GenerationRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.GenerateResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    },
                    "429": {
                        "description": "Too Many Requests",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/generate/stream": {
            "post": {
                "produces": [
                    "application/x-ndjson"
                ],
                "tags": [
                    "generation"
                ],
                "summary": "Generate code as an NDJSON stream of chunks",
                "description": "Emits status chunks followed by one final chunk with fenced code.",
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Generation request",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/types.GenerationRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.Chunk"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    },
                    "429": {
                        "description": "Too Many Requests",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/ws/generate": {
            "get": {
                "tags": [
                    "generation"
                ],
                "summary": "Generate code over a WebSocket",
                "description": "Each text message is a GenerationRequest; the server answers with Chunk messages, ending with a final chunk or an ErrorResponse.",
                "responses": {}
            }
        },
        "/models/{language}/load": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "models"
                ],
                "summary": "Load a language model and wait until it is resident",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Language key",
                        "name": "language",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.ModelActionResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/models/{language}": {
            "delete": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "models"
                ],
                "summary": "Unload a language model",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Language key",
                        "name": "language",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.ModelActionResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/switch": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "models"
                ],
                "summary": "Start loading a language model in the background",
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Language",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/types.SwitchRequest"
                        }
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Accepted",
                        "schema": {
                            "$ref": "#/definitions/types.SwitchResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/performance-mode": {
            "put": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "models"
                ],
                "summary": "Set the performance mode",
                "description": "Unknown modes select balanced.",
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Mode",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/types.PerformanceModeRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.PerformanceModeResponse"
                        }
                    }
                }
            }
        },
        "/feedback": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "training"
                ],
                "summary": "Save the last exchange of a conversation as rated feedback",
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Conversation",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/types.FeedbackRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/types.SaveResult"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/types.SaveResult"
                        }
                    }
                }
            }
        },
        "/training": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "training"
                ],
                "summary": "List training examples, newest first",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Language name or all",
                        "name": "language",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "description": "all, comparison, feedback or manual",
                        "name": "source",
                        "in": "query",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.TrainingListResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                }
            },
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "training"
                ],
                "summary": "Save a task and its solution as a training example",
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Example",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/types.TrainingExampleRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/types.SaveResult"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/types.SaveResult"
                        }
                    }
                }
            }
        },
        "/training/comparison": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "training"
                ],
                "summary": "Save answers of this assistant and another system to one question",
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Comparison",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/types.ComparisonRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/types.SaveResult"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/types.SaveResult"
                        }
                    }
                }
            }
        },
        "/training/{name}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "training"
                ],
                "summary": "Read one training example",
                "parameters": [
                    {
                        "type": "string",
                        "description": "File name",
                        "name": "name",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.TrainingRecord"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/types.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "training"
                ],
                "summary": "Delete a training example",
                "parameters": [
                    {
                        "type": "string",
                        "description": "File name",
                        "name": "name",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.SaveResult"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/types.SaveResult"
                        }
                    }
                }
            }
        },
        "/training/{name}/notes": {
            "put": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "training"
                ],
                "summary": "Set the comparison notes of a training example",
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "File name",
                        "name": "name",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Notes",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/types.NotesRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.SaveResult"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/types.SaveResult"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "string"
                },
                "code": {
                    "type": "integer",
                    "example": 400
                }
            }
        },
        "types.ModelConfig": {
            "type": "object",
            "properties": {
                "language": {
                    "type": "string",
                    "example": "python"
                },
                "model_id": {
                    "type": "string",
                    "example": "meta-llama/CodeLlama-13b-Instruct-hf"
                },
                "prompt_template": {
                    "type": "string"
                },
                "supports_multiturn": {
                    "type": "boolean",
                    "example": true
                }
            }
        },
        "types.Model": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string",
                    "example": "codellama-13b-instruct"
                },
                "name": {
                    "type": "string",
                    "example": "codellama-13b-instruct.Q4_K_M.gguf"
                },
                "path": {
                    "type": "string"
                },
                "quant": {
                    "type": "string",
                    "example": "Q4_K_M"
                },
                "size_bytes": {
                    "type": "integer"
                }
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {
                "models": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/types.ModelConfig"
                    }
                },
                "files": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/types.Model"
                    }
                }
            }
        },
        "types.Turn": {
            "type": "object",
            "properties": {
                "role": {
                    "type": "string",
                    "example": "user"
                },
                "content": {
                    "type": "string"
                }
            }
        },
        "types.GenerationRequest": {
            "type": "object",
            "required": [
                "prompt"
            ],
            "properties": {
                "prompt": {
                    "type": "string",
                    "example": "Write a function that reverses a string."
                },
                "history": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/types.Turn"
                    }
                },
                "language": {
                    "type": "string",
                    "example": "python"
                },
                "temperature": {
                    "type": "number",
                    "example": 0.2
                },
                "max_new_tokens": {
                    "type": "integer",
                    "example": 1024
                },
                "repetition_penalty": {
                    "type": "number",
                    "example": 1.1
                }
            }
        },
        "types.Chunk": {
            "type": "object",
            "properties": {
                "kind": {
                    "type": "string",
                    "example": "final",
                    "enum": [
                        "status",
                        "partial",
                        "final"
                    ]
                },
                "text": {
                    "type": "string"
                },
                "language": {
                    "type": "string",
                    "example": "python"
                }
            }
        },
        "types.GenerateResponse": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "language": {
                    "type": "string",
                    "example": "python"
                }
            }
        },
        "types.DetectRequest": {
            "type": "object",
            "required": [
                "prompt"
            ],
            "properties": {
                "prompt": {
                    "type": "string"
                }
            }
        },
        "types.DetectResponse": {
            "type": "object",
            "properties": {
                "language": {
                    "type": "string",
                    "example": "powershell"
                }
            }
        },
        "types.SwitchRequest": {
            "type": "object",
            "required": [
                "language"
            ],
            "properties": {
                "language": {
                    "type": "string",
                    "example": "powershell"
                }
            }
        },
        "types.SwitchResponse": {
            "type": "object",
            "properties": {
                "op_id": {
                    "type": "string"
                },
                "language": {
                    "type": "string"
                }
            }
        },
        "types.ModelActionResponse": {
            "type": "object",
            "properties": {
                "language": {
                    "type": "string"
                },
                "ok": {
                    "type": "boolean"
                }
            }
        },
        "types.PerformanceModeRequest": {
            "type": "object",
            "properties": {
                "mode": {
                    "type": "string",
                    "example": "memory"
                }
            }
        },
        "types.PerformanceModeResponse": {
            "type": "object",
            "properties": {
                "mode": {
                    "type": "string",
                    "example": "memory"
                }
            }
        },
        "types.FeedbackRequest": {
            "type": "object",
            "required": [
                "history"
            ],
            "properties": {
                "history": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/types.Turn"
                    }
                },
                "positive": {
                    "type": "boolean"
                }
            }
        },
        "types.TrainingExampleRequest": {
            "type": "object",
            "required": [
                "instruction",
                "response"
            ],
            "properties": {
                "instruction": {
                    "type": "string"
                },
                "response": {
                    "type": "string"
                },
                "source": {
                    "type": "string"
                }
            }
        },
        "types.ComparisonRequest": {
            "type": "object",
            "required": [
                "instruction",
                "codebuddy_response",
                "other_ai_response",
                "other_ai_name"
            ],
            "properties": {
                "instruction": {
                    "type": "string"
                },
                "codebuddy_response": {
                    "type": "string"
                },
                "other_ai_response": {
                    "type": "string"
                },
                "other_ai_name": {
                    "type": "string",
                    "example": "ChatGPT"
                },
                "language": {
                    "type": "string"
                }
            }
        },
        "types.NotesRequest": {
            "type": "object",
            "properties": {
                "notes": {
                    "type": "string"
                }
            }
        },
        "types.SaveResult": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "message": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                }
            }
        },
        "types.TrainingSummary": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "source": {
                    "type": "string",
                    "example": "Positive Feedback"
                },
                "language": {
                    "type": "string",
                    "example": "Python"
                },
                "timestamp": {
                    "type": "string",
                    "example": "20240101_120000"
                },
                "preview": {
                    "type": "string"
                }
            }
        },
        "types.TrainingListResponse": {
            "type": "object",
            "properties": {
                "examples": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/types.TrainingSummary"
                    }
                }
            }
        },
        "types.TrainingRecord": {
            "type": "object",
            "properties": {
                "instruction": {
                    "type": "string"
                },
                "response": {
                    "type": "string"
                },
                "codebuddy_response": {
                    "type": "string"
                },
                "other_ai_response": {
                    "type": "string"
                },
                "other_ai_name": {
                    "type": "string"
                },
                "comparison_notes": {
                    "type": "string"
                },
                "source": {
                    "type": "string"
                },
                "language": {
                    "type": "string"
                },
                "timestamp": {
                    "type": "string"
                }
            }
        },
        "types.InstanceStatus": {
            "type": "object",
            "properties": {
                "language": {
                    "type": "string"
                },
                "model_id": {
                    "type": "string"
                },
                "prompt_family": {
                    "type": "string",
                    "example": "instruct_chat"
                },
                "state": {
                    "type": "string",
                    "example": "resident"
                },
                "rung": {
                    "type": "integer",
                    "example": 1
                },
                "precision": {
                    "type": "string",
                    "example": "nf4"
                },
                "loaded_at_unix": {
                    "type": "integer"
                },
                "last_used_unix": {
                    "type": "integer"
                },
                "queue_len": {
                    "type": "integer"
                },
                "inflight": {
                    "type": "integer"
                },
                "max_queue_depth": {
                    "type": "integer"
                }
            }
        },
        "types.HostStatus": {
            "type": "object",
            "properties": {
                "cpu_model": {
                    "type": "string"
                },
                "physical_cores": {
                    "type": "integer"
                },
                "logical_cores": {
                    "type": "integer"
                },
                "tuned_cpu": {
                    "type": "boolean"
                },
                "gpu_present": {
                    "type": "boolean"
                },
                "gpu_name": {
                    "type": "string"
                },
                "gpu_memory_mb": {
                    "type": "integer"
                },
                "gpu_compute_class": {
                    "type": "string"
                },
                "host_memory_mb": {
                    "type": "integer"
                },
                "inference_threads": {
                    "type": "integer"
                },
                "tokenization_threads": {
                    "type": "integer"
                }
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "instances": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/types.InstanceStatus"
                    }
                },
                "performance_mode": {
                    "type": "string",
                    "example": "balanced"
                },
                "host": {
                    "$ref": "#/definitions/types.HostStatus"
                },
                "last_error": {
                    "type": "string"
                },
                "uptime_seconds": {
                    "type": "integer"
                },
                "server_time_unix": {
                    "type": "integer"
                },
                "loads_total": {
                    "type": "integer"
                },
                "evictions_total": {
                    "type": "integer"
                },
                "unloads_total": {
                    "type": "integer"
                },
                "fallbacks_total": {
                    "type": "integer"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "codebuddyd API",
	Description:      "HTTP API for the local code assistant: language models, code generation and training data.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
