package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title a11yscan API
// @version 0.1
// @description Accessibility and cookie-consent scans of single web pages.
// @contact.name a11yscan Maintainers
// @contact.url https://github.com/raysh454/a11yscan
// @BasePath /
