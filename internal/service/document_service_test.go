package service

import (
	"context"
	"errors"
	"testing"

	"zhiwen-go/internal/errs"
	"zhiwen-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDocFixture(doc *model.Document) (*fakeDocRepo, *fakeStore, *fakeDeleter, *taskRecorder, DocumentService) {
	docRepo := newFakeDocRepo(doc)
	store := newFakeStore()
	deleter := &fakeDeleter{}
	recorder := &taskRecorder{}
	svc := NewDocumentService(docRepo, &fakeChunkRepo{}, store, deleter, recorder.produce)
	return docRepo, store, deleter, recorder, svc
}

func completeDoc() *model.Document {
	return &model.Document{
		ID:         "doc-1",
		Title:      "报告",
		Status:     model.StatusComplete,
		ObjectName: "doc-1.pdf",
		Meta: model.DocumentMeta{
			FileName:         model.String("报告.pdf"),
			Progress:         model.Int(100),
			TotalChunks:      model.Int(12),
			SuccessfulChunks: model.Int(11),
			DegradedChunks:   model.Int(1),
		},
	}
}

func TestStatusView(t *testing.T) {
	_, _, _, _, svc := newDocFixture(completeDoc())

	dto, err := svc.Status(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", dto.DocumentID)
	assert.Equal(t, model.StatusComplete, dto.Status)
	assert.Equal(t, 100, dto.Progress)
	assert.Equal(t, 12, dto.TotalChunks)
	assert.Equal(t, 11, dto.SuccessfulChunks)
	assert.Equal(t, 1, dto.DegradedChunks)
}

func TestStatusNotFound(t *testing.T) {
	_, _, _, _, svc := newDocFixture(completeDoc())
	_, err := svc.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDeleteCascades(t *testing.T) {
	docRepo, store, deleter, _, svc := newDocFixture(completeDoc())
	store.objects["doc-1.pdf"] = []byte("bytes")

	err := svc.Delete(context.Background(), "doc-1")
	require.NoError(t, err)

	// 向量索引、数据库记录、对象文件全部清除
	assert.Equal(t, []string{"doc-1"}, deleter.deleted)
	_, err = docRepo.FindByID("doc-1")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Equal(t, []string{"doc-1.pdf"}, store.removed)
}

func TestDeleteVectorIndexFailureAborts(t *testing.T) {
	docRepo, _, deleter, _, svc := newDocFixture(completeDoc())
	deleter.err = errors.New("es down")

	err := svc.Delete(context.Background(), "doc-1")
	require.Error(t, err)

	// 索引删不掉时数据库记录保留，避免产生脱离管理的向量
	_, err = docRepo.FindByID("doc-1")
	assert.NoError(t, err)
}

func TestDownloadURL(t *testing.T) {
	_, _, _, _, svc := newDocFixture(completeDoc())

	url, err := svc.DownloadURL(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Contains(t, url, "doc-1.pdf")
}

func TestReingestRequeuesUploadedDocument(t *testing.T) {
	doc := completeDoc()
	doc.Status = model.StatusUploaded
	_, _, _, recorder, svc := newDocFixture(doc)

	err := svc.Reingest(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, recorder.produced, 1)
	assert.Equal(t, "doc-1", recorder.produced[0].DocumentID)
	assert.Equal(t, "报告.pdf", recorder.produced[0].FileName)
}

func TestReingestRejectsOtherStates(t *testing.T) {
	for _, status := range []model.ProcessingStatus{
		model.StatusPending, model.StatusProcessing, model.StatusComplete, model.StatusError,
	} {
		doc := completeDoc()
		doc.Status = status
		_, _, _, recorder, svc := newDocFixture(doc)

		err := svc.Reingest(context.Background(), "doc-1")
		assert.Error(t, err, "状态 %s 不应允许重新投递", status)
		assert.Empty(t, recorder.produced)
	}
}
