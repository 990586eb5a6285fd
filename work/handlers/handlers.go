package handlers

import (
	"net/http"

	"hls-bridge/work/proxy"
)

func HandleManifest(b *proxy.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.HandleManifest(w, r)
	}
}

func HandleM3U(b *proxy.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.HandleM3U(w, r)
	}
}

func HandleStatus(b *proxy.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.HandleStatus(w, r)
	}
}

func HandleHealth(b *proxy.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.HandleHealth(w, r)
	}
}
