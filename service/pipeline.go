package service

import (
	"context"
	"fmt"

	"github.com/Rishie123/billprocessor/model"
	"github.com/Rishie123/billprocessor/pkg/logger"
)

// Pipeline stage names used in error reporting.
const (
	StageClassify = "classify"
	StageFile     = "file"
	StageArchive  = "archive"
	StageExtract  = "extract"
	StageRecord   = "record"
)

// Archive is the binary object capability the pipeline drives.
// Satisfied by DriveService.
type Archive interface {
	EnsureFolder(ctx context.Context, name string) (string, error)
	UploadBill(ctx context.Context, folderID, fileName string, data []byte, mimeType string) (string, error)
}

// Ledger is the tabular capability the pipeline drives.
// Satisfied by SheetsService.
type Ledger interface {
	Worksheet(ctx context.Context, title string) (Worksheet, error)
}

// StageError tags a pipeline failure with the stage it happened in, so the
// handler can tell a classification failure from an extraction failure from
// a plain transport failure.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Outcome is what the upload handler renders on full success.
type Outcome struct {
	BillType  string            `json:"bill_type"`
	PartyName string            `json:"party_name"`
	DriveLink string            `json:"drive_link"`
	Record    *model.BillRecord `json:"record"`
}

// Pipeline sequences one bill through classify, folder/sheet resolution,
// archive, extract and record. Linear, no branching back: a stage never
// runs twice for one image and a failure stops the machine where it stands.
// Completed steps are not rolled back, so an extraction failure still
// leaves the image archived in Drive.
type Pipeline struct {
	analysis *AnalysisService
	archive  Archive
	ledger   Ledger
	store    *BillStore
}

func NewPipeline(analysis *AnalysisService, archive Archive, ledger Ledger, store *BillStore) *Pipeline {
	return &Pipeline{
		analysis: analysis,
		archive:  archive,
		ledger:   ledger,
		store:    store,
	}
}

// Process runs the full pipeline for one uploaded image. All external calls
// block in sequence; the caller waits for the run to finish.
func (p *Pipeline) Process(ctx context.Context, bill *model.Bill, image []byte, mimeType string) (*Outcome, error) {
	ctx = context.WithValue(ctx, logger.BillIDKey, bill.ID)
	logger.Info(ctx, "pipeline started", "filename", bill.Filename)

	cls, err := p.analysis.ClassifyBill(ctx, image, mimeType)
	if err != nil {
		return nil, p.fail(ctx, bill, StageClassify, err)
	}
	p.store.SetClassification(bill.ID, cls.BillType, cls.PartyName)
	p.store.SetStage(bill.ID, model.StatusClassified)
	logger.Info(ctx, "bill classified", "bill_type", cls.BillType, "party", cls.PartyName)

	folderID, err := p.archive.EnsureFolder(ctx, cls.PartyName)
	if err != nil {
		return nil, p.fail(ctx, bill, StageFile, err)
	}
	ws, err := p.ledger.Worksheet(ctx, cls.PartyName)
	if err != nil {
		return nil, p.fail(ctx, bill, StageFile, err)
	}
	p.store.SetStage(bill.ID, model.StatusFiled)

	link, err := p.archive.UploadBill(ctx, folderID, bill.Filename, image, mimeType)
	if err != nil {
		return nil, p.fail(ctx, bill, StageArchive, err)
	}
	p.store.SetDriveLink(bill.ID, link)
	p.store.SetStage(bill.ID, model.StatusArchived)
	logger.Info(ctx, "bill archived", "drive_link", link)

	rec, err := p.analysis.ExtractBillDetails(ctx, image, mimeType)
	if err != nil {
		// The image is already filed in Drive at this point; the stored
		// link stays visible alongside the extraction failure.
		return nil, p.fail(ctx, bill, StageExtract, err)
	}
	p.store.SetRecord(bill.ID, rec)
	p.store.SetStage(bill.ID, model.StatusExtracted)

	if err := UpsertRecord(ctx, ws, rec); err != nil {
		return nil, p.fail(ctx, bill, StageRecord, err)
	}
	p.store.SetStage(bill.ID, model.StatusRecorded)

	p.store.SetStage(bill.ID, model.StatusDone)
	logger.Info(ctx, "pipeline completed", "party", cls.PartyName)

	return &Outcome{
		BillType:  cls.BillType,
		PartyName: cls.PartyName,
		DriveLink: link,
		Record:    rec,
	}, nil
}

func (p *Pipeline) fail(ctx context.Context, bill *model.Bill, stage string, err error) error {
	stageErr := &StageError{Stage: stage, Err: err}
	p.store.Fail(bill.ID, stageErr.Error())
	logger.Error(ctx, "pipeline failed", "stage", stage, "error", err)
	return stageErr
}
