package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"codebuddy/internal/training"
	"codebuddy/pkg/types"
)

// handleTrainingSave godoc
//
//	@Summary	Save a task and its solution as a training example
//	@Tags		training
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.TrainingExampleRequest	true	"Example"
//	@Success	201		{object}	types.SaveResult
//	@Failure	400		{object}	types.SaveResult
//	@Router		/training [post]
func (s *server) handleTrainingSave(w http.ResponseWriter, r *http.Request) {
	var req types.TrainingExampleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	name, err := s.Training.SaveExample(req.Instruction, req.Response, req.Source)
	writeSaveResult(w, name, err, "Saved example to "+name)
}

// handleComparisonSave godoc
//
//	@Summary	Save answers of this assistant and another system to one question
//	@Tags		training
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.ComparisonRequest	true	"Comparison"
//	@Success	201		{object}	types.SaveResult
//	@Failure	400		{object}	types.SaveResult
//	@Router		/training/comparison [post]
func (s *server) handleComparisonSave(w http.ResponseWriter, r *http.Request) {
	var req types.ComparisonRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	name, err := s.Training.SaveComparison(req.Instruction, req.CodebuddyResponse, req.OtherAIResponse, req.OtherAIName, normalizeLanguage(req.Language))
	writeSaveResult(w, name, err, "Saved comparison example to "+name)
}

// handleTrainingList godoc
//
//	@Summary	List training examples, newest first
//	@Tags		training
//	@Produce	json
//	@Param		language	query		string	false	"Language name or all"
//	@Param		source		query		string	false	"all, comparison, feedback or manual"
//	@Success	200			{object}	types.TrainingListResponse
//	@Failure	400			{object}	types.ErrorResponse
//	@Router		/training [get]
func (s *server) handleTrainingList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, ok := training.ParseSourceFilter(q.Get("source"))
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unknown source filter: "+q.Get("source"))
		return
	}
	rows, err := s.Training.List(q.Get("language"), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.TrainingListResponse{Examples: rows})
}

// handleTrainingGet godoc
//
//	@Summary	Read one training example
//	@Tags		training
//	@Produce	json
//	@Param		name	path		string	true	"File name"
//	@Success	200		{object}	types.TrainingRecord
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/training/{name} [get]
func (s *server) handleTrainingGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Training.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleTrainingNotes godoc
//
//	@Summary	Set the comparison notes of a training example
//	@Tags		training
//	@Accept		json
//	@Produce	json
//	@Param		name	path		string				true	"File name"
//	@Param		body	body		types.NotesRequest	true	"Notes"
//	@Success	200		{object}	types.SaveResult
//	@Failure	404		{object}	types.SaveResult
//	@Router		/training/{name}/notes [put]
func (s *server) handleTrainingNotes(w http.ResponseWriter, r *http.Request) {
	var req types.NotesRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.Training.SaveNotes(name, req.Notes); err != nil {
		writeJSON(w, statusFor(err), types.SaveResult{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, types.SaveResult{Success: true, Message: "Notes saved for " + name, Name: name})
}

// handleTrainingDelete godoc
//
//	@Summary	Delete a training example
//	@Tags		training
//	@Produce	json
//	@Param		name	path		string	true	"File name"
//	@Success	200		{object}	types.SaveResult
//	@Failure	404		{object}	types.SaveResult
//	@Router		/training/{name} [delete]
func (s *server) handleTrainingDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.Training.Delete(name); err != nil {
		writeJSON(w, statusFor(err), types.SaveResult{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, types.SaveResult{Success: true, Message: "Deleted example: " + name, Name: name})
}
