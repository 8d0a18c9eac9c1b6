package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Generate builds the OpenAPI 3.1 document describing the docsdesk REST API.
func Generate(baseURL, version string) *openapi3.T {
	if version == "" {
		version = "dev"
	}
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "docsdesk API",
			Description: "User administration and self-service registration for the document management system.",
			Version:     version,
		},
	}
	if baseURL != "" {
		doc.Servers = openapi3.Servers{{URL: baseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["apiKey"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-API-Key",
		},
	}
	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	addSchemas(doc.Components.Schemas)

	doc.Paths = openapi3.NewPaths()
	addRegistrationPaths(doc)
	addUserPaths(doc)
	addSessionPaths(doc)

	return doc
}

// adminSecurity is attached to every operation that requires an operator.
func adminSecurity() *openapi3.SecurityRequirements {
	return &openapi3.SecurityRequirements{
		{"apiKey": {}},
		{"bearerAuth": {}},
	}
}

// publicSecurity marks an operation as callable without credentials.
func publicSecurity() *openapi3.SecurityRequirements {
	return &openapi3.SecurityRequirements{}
}

// ─── Schemas ────────────────────────────────────────────────────────────────

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func stringProp(desc string) *openapi3.SchemaRef {
	s := openapi3.NewStringSchema()
	s.Description = desc
	return &openapi3.SchemaRef{Value: s}
}

func epochMillis(desc string, nullable bool) *openapi3.SchemaRef {
	s := &openapi3.Schema{
		Type:        &openapi3.Types{"integer"},
		Format:      "int64",
		Description: desc + " (Unix epoch milliseconds)",
		Nullable:    nullable,
	}
	return &openapi3.SchemaRef{Value: s}
}

func int64Prop(desc string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:        &openapi3.Types{"integer"},
		Format:      "int64",
		Description: desc,
	}}
}

func addSchemas(schemas openapi3.Schemas) {
	schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"type":    stringProp("ValidationError, AlreadyExistError or NotFound"),
							"message": stringProp(""),
							"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
						},
					},
				},
			},
		},
	}

	schemas["StatusResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"status": stringProp("Always \"ok\""),
			},
		},
	}

	status := openapi3.NewStringSchema()
	status.Enum = []interface{}{"PENDING", "APPROVED", "REJECTED"}
	schemas["RegistrationRequest"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"id", "username", "email", "status", "create_date"},
			Properties: openapi3.Schemas{
				"id":          &openapi3.SchemaRef{Value: openapi3.NewUUIDSchema()},
				"username":    stringProp(""),
				"email":       stringProp(""),
				"status":      &openapi3.SchemaRef{Value: status},
				"reason":      stringProp("Rejection reason"),
				"create_date": epochMillis("Creation date", false),
				"update_date": epochMillis("Last status change", true),
			},
		},
	}

	schemas["User"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"id", "username", "email", "create_date"},
			Properties: openapi3.Schemas{
				"id":              &openapi3.SchemaRef{Value: openapi3.NewUUIDSchema()},
				"username":        stringProp(""),
				"email":           stringProp(""),
				"role":            stringProp(""),
				"storage_quota":   int64Prop("Storage quota in bytes"),
				"storage_current": int64Prop("Storage used in bytes"),
				"create_date":     epochMillis("Creation date", false),
				"disable_date":    epochMillis("Disable date", true),
			},
		},
	}
}

// ─── Paths ──────────────────────────────────────────────────────────────────

func addRegistrationPaths(doc *openapi3.T) {
	registerBody := &openapi3.Schema{
		Type:     &openapi3.Types{"object"},
		Required: []string{"username", "email"},
		Properties: openapi3.Schemas{
			"username": &openapi3.SchemaRef{Value: openapi3.NewStringSchema().WithMinLength(3).WithMaxLength(50)},
			"email":    &openapi3.SchemaRef{Value: openapi3.NewStringSchema().WithMinLength(3).WithMaxLength(50).WithFormat("email")},
		},
	}

	register := &openapi3.Operation{
		Tags:        []string{"registration"},
		Summary:     "Request an account",
		Description: "Create a pending registration request. Rate limited per client IP.",
		OperationID: "register",
		Security:    publicSecurity(),
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Required: true,
				Content: openapi3.Content{
					"application/x-www-form-urlencoded": &openapi3.MediaType{Schema: &openapi3.SchemaRef{Value: registerBody}},
					"application/json":                  &openapi3.MediaType{Schema: &openapi3.SchemaRef{Value: registerBody}},
				},
			},
		},
		Responses: newResponses("200", "Request recorded", ref("StatusResponse"), "400", "409", "429"),
	}

	list := &openapi3.Operation{
		Tags:        []string{"registration"},
		Summary:     "List pending registration requests",
		Description: "Pending, non-deleted requests, newest first.",
		OperationID: "listRegistrationRequests",
		Security:    adminSecurity(),
		Responses: newResponses("200", "Pending requests", &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type: &openapi3.Types{"object"},
				Properties: openapi3.Schemas{
					"requests": &openapi3.SchemaRef{Value: &openapi3.Schema{
						Type:  &openapi3.Types{"array"},
						Items: ref("RegistrationRequest"),
					}},
				},
			},
		}, "401", "403"),
	}

	doc.Paths.Set("/api/registration", &openapi3.PathItem{Put: register, Get: list})

	idParam := &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("id").
			WithDescription("Registration request ID").
			WithSchema(openapi3.NewUUIDSchema()),
	}

	doc.Paths.Set("/api/registration/{id}", &openapi3.PathItem{
		Delete: &openapi3.Operation{
			Tags:        []string{"registration"},
			Summary:     "Delete a registration request",
			OperationID: "deleteRegistrationRequest",
			Security:    adminSecurity(),
			Parameters:  openapi3.Parameters{idParam},
			Responses:   newResponses("200", "Request deleted", ref("StatusResponse"), "401", "403", "404"),
		},
	})

	doc.Paths.Set("/api/registration/{id}/approve", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"registration"},
			Summary:     "Approve a registration request",
			Description: "Marks the request approved and creates the user account. The initial password is the username.",
			OperationID: "approveRegistrationRequest",
			Security:    adminSecurity(),
			Parameters:  openapi3.Parameters{idParam},
			Responses:   newResponses("200", "Request approved", ref("StatusResponse"), "401", "403", "404"),
		},
	})

	rejectBody := &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			"reason": &openapi3.SchemaRef{Value: openapi3.NewStringSchema().WithMaxLength(500)},
		},
	}
	doc.Paths.Set("/api/registration/{id}/reject", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"registration"},
			Summary:     "Reject a registration request",
			OperationID: "rejectRegistrationRequest",
			Security:    adminSecurity(),
			Parameters:  openapi3.Parameters{idParam},
			RequestBody: &openapi3.RequestBodyRef{
				Value: &openapi3.RequestBody{
					Content: openapi3.Content{
						"application/x-www-form-urlencoded": &openapi3.MediaType{Schema: &openapi3.SchemaRef{Value: rejectBody}},
						"application/json":                  &openapi3.MediaType{Schema: &openapi3.SchemaRef{Value: rejectBody}},
					},
				},
			},
			Responses: newResponses("200", "Request rejected", ref("StatusResponse"), "400", "401", "403", "404"),
		},
	})
}

func addUserPaths(doc *openapi3.T) {
	sortColumn := openapi3.NewQueryParameter("sort_column").
		WithDescription("0 id, 1 username, 2 email, 3 create_date, 4 storage_current, 5 storage_quota, 6 disable_date").
		WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32", Default: 1})
	asc := openapi3.NewQueryParameter("asc").
		WithDescription("Ascending order").
		WithSchema(&openapi3.Schema{Type: &openapi3.Types{"boolean"}, Default: true})

	doc.Paths.Set("/api/user/list", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"user"},
			Summary:     "List users",
			OperationID: "listUsers",
			Security:    adminSecurity(),
			Parameters: openapi3.Parameters{
				&openapi3.ParameterRef{Value: sortColumn},
				&openapi3.ParameterRef{Value: asc},
			},
			Responses: newResponses("200", "Users", &openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type: &openapi3.Types{"object"},
					Properties: openapi3.Schemas{
						"users": &openapi3.SchemaRef{Value: &openapi3.Schema{
							Type:  &openapi3.Types{"array"},
							Items: ref("User"),
						}},
						"total": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}},
					},
				},
			}, "401", "403"),
		},
	})
}

func addSessionPaths(doc *openapi3.T) {
	loginBody := &openapi3.Schema{
		Type:     &openapi3.Types{"object"},
		Required: []string{"email", "password"},
		Properties: openapi3.Schemas{
			"email":    stringProp(""),
			"password": &openapi3.SchemaRef{Value: openapi3.NewStringSchema().WithFormat("password")},
		},
	}
	loginResp := &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			"session_token": stringProp("JWT to send as a bearer token"),
			"token_type":    stringProp(""),
			"expires_in":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}},
			"admin_id":      stringProp(""),
			"email":         stringProp(""),
			"name":          stringProp(""),
		},
	}

	doc.Paths.Set("/api/session", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"session"},
			Summary:     "Operator login",
			OperationID: "login",
			Security:    publicSecurity(),
			RequestBody: &openapi3.RequestBodyRef{
				Value: &openapi3.RequestBody{
					Required: true,
					Content:  openapi3.NewContentWithJSONSchema(loginBody),
				},
			},
			Responses: newResponses("200", "Session issued", &openapi3.SchemaRef{Value: loginResp}, "400", "401"),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{"session"},
			Summary:     "Operator logout",
			OperationID: "logout",
			Security:    publicSecurity(),
			Responses: newResponses("200", "Session discarded", &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"object"}},
			}),
		},
	})
}

// ─── Response Helpers ───────────────────────────────────────────────────────

var errorDescriptions = map[string]string{
	"400": "Bad request",
	"401": "Unauthorized",
	"403": "Forbidden",
	"404": "Not found",
	"409": "Already exists",
	"429": "Too many requests",
	"500": "Internal server error",
}

// newResponses builds a Responses map with a success response, the listed
// error responses and a 500.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef, errorCodes ...string) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := ref("ErrorResponse")
	for _, code := range append(errorCodes, "500") {
		desc := errorDescriptions[code]
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}

	return responses
}
