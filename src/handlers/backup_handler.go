package handlers

import (
	"net/http"

	"github.com/username/stocktracker/src/services"
	"github.com/username/stocktracker/src/utils"
)

type BackupHandler struct {
	backups services.BackupService
}

func NewBackupHandler(backups services.BackupService) *BackupHandler {
	return &BackupHandler{backups: backups}
}

func (h *BackupHandler) HandleCreateBackup(w http.ResponseWriter, r *http.Request) {
	info, err := h.backups.Create(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "create backup")
		return
	}
	utils.WriteJSON(w, http.StatusCreated, info)
}

func (h *BackupHandler) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.List()
	if err != nil {
		writeServiceError(w, r, err, "list backups")
		return
	}
	utils.WriteJSON(w, http.StatusOK, backups)
}
