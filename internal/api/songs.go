package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/satindergrewal/cueline/internal/song"
)

func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.songs.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

func (s *Server) handleCreateSong(w http.ResponseWriter, r *http.Request) {
	var in song.Song
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	in.Defaults(s.defaults)

	created, err := s.songs.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	got, err := s.songs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleUpdateSong(w http.ResponseWriter, r *http.Request) {
	var in song.Song
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	in.ID = chi.URLParam(r, "id")
	in.Defaults(s.defaults)

	updated, err := s.songs.Update(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	if err := s.songs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
