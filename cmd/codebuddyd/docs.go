package main

// General API documentation for swaggo. Run `swag init -g cmd/codebuddyd/docs.go` to regenerate docs.
//
// @title           codebuddyd API
// @version         1.0
// @description     Local code assistant: language routing, model lifecycle and code generation over CodeLlama.
//
// @contact.name   codebuddyd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
