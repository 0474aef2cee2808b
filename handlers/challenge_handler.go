package handlers

import (
	"context"
	"mime/multipart"
	"net/http"
	"time"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/types/challenge"
	"repcirAPI/services"
)

// multipart overhead allowed on top of the proof file itself
const proofFormOverhead = 1 << 20

type ChallengeHandler struct {
	challengeService *services.ChallengeService
}

func NewChallengeHandler(challengeService *services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService}
}

func (h *ChallengeHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	challenges, err := h.challengeService.ListChallenges(ctx, clerkID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	ch, err := h.challengeService.GetChallenge(ctx, clerkID, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ch)
}

func (h *ChallengeHandler) Join(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	resp, err := h.challengeService.Join(ctx, clerkID, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	code := http.StatusCreated
	if resp.Rejoined {
		code = http.StatusOK
	}
	respondWithJSON(w, code, resp)
}

func (h *ChallengeHandler) Leave(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	participant, err := h.challengeService.Leave(ctx, clerkID, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, participant)
}

func (h *ChallengeHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	var req challenge.CheckInRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	resp, err := h.challengeService.CheckIn(ctx, clerkID, id, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *ChallengeHandler) Progress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	rows, err := h.challengeService.Progress(ctx, clerkID, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if rows == nil {
		rows = []*challenge.Progress{}
	}
	respondWithJSON(w, http.StatusOK, rows)
}

// UploadProof accepts a multipart form with the media in the "file" field.
func (h *ChallengeHandler) UploadProof(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxProofSize+proofFormOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithAppError(w, r, apperrors.Validation("A file is required (max 10 MiB)", map[string]string{"file": "required"}))
		return
	}
	defer file.Close()

	contentType, err := detectContentType(file, header)
	if err != nil {
		respondWithAppError(w, r, apperrors.Validation("Unreadable file", map[string]string{"file": "readable"}))
		return
	}

	upload, err := h.challengeService.UploadProof(ctx, clerkID, id, services.ProofFile{
		Body:        file,
		Size:        header.Size,
		ContentType: contentType,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, upload)
}

// detectContentType trusts the part header when present and sniffs otherwise.
func detectContentType(file multipart.File, header *multipart.FileHeader) (string, error) {
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct, nil
	}
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && n == 0 {
		return "", err
	}
	if _, err := file.Seek(0, 0); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
