package main

//go:generate swag init -g cmd/tracker/main.go -o docs

// @title           Whale Tracker API
// @version         0.1.0
// @description     Whale signals, ranked recommendations and paper-trade performance for Polymarket.
// @host            localhost:8000
// @BasePath        /
// @schemes         http
