package core

import "errors"

var (
	ErrNotCurrent         = errors.New("message is not the current question")
	ErrEmptyAnswer        = errors.New("answer is empty")
	ErrUnknownOption      = errors.New("option is not offered by this question")
	ErrWrongInput         = errors.New("question does not accept this kind of answer")
	ErrOtherNotOpen       = errors.New("free-text field is not open")
	ErrIncompleteSections = errors.New("every section needs an answer")
	ErrClosed             = errors.New("engine is closed")

	ErrNoSummary      = errors.New("no summary loaded")
	ErrNoSelection    = errors.New("no pending selection")
	ErrEmptyComment   = errors.New("comment is empty")
	ErrUnknownComment = errors.New("comment not found")

	ErrNoDepartments     = errors.New("select at least one department")
	ErrUnknownDepartment = errors.New("department is not in the catalogue")
)
