package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `description,medical_specialty,sample_name,transcription,keywords
"A 23-year-old white female.",Allergy / Immunology,Allergic Rhinitis,"SUBJECTIVE: This 23-year-old white female presents with complaint of allergies.",allergy
"Consult for laparoscopic gastric bypass.",Bariatrics,Laparoscopic Gastric Bypass Consult,"PAST MEDICAL HISTORY: He has difficulty climbing stairs.",bariatrics
"Empty transcription row.",Cardiology,Missing Sample,"",cardiology
`

func TestParseCSV(t *testing.T) {
	docs, err := ParseCSV("mtsamples.csv", []byte(sampleCSV))
	require.NoError(t, err)
	require.Len(t, docs, 2, "空 transcription 行应被跳过")

	first := docs[0]
	assert.Equal(t, "Allergic Rhinitis", first.Title)
	assert.Equal(t, "Allergy / Immunology", first.Specialty)
	assert.Equal(t, "mtsamples.csv", first.Source)
	assert.Contains(t, first.Text, "complaint of allergies")
	assert.NotEmpty(t, first.ID)

	assert.Equal(t, "Laparoscopic Gastric Bypass Consult", docs[1].Title)
	assert.NotEqual(t, first.ID, docs[1].ID)
}

// description 摘要要拼在 transcription 前面一起进入索引文本。
func TestParseCSVPrependsDescription(t *testing.T) {
	docs, err := ParseCSV("mtsamples.csv", []byte(sampleCSV))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.True(t, strings.HasPrefix(docs[0].Text, "A 23-year-old white female.\n"),
		"正文应以 description 开头")
	assert.Contains(t, docs[0].Text, "complaint of allergies")
	assert.True(t, strings.HasPrefix(docs[1].Text, "Consult for laparoscopic gastric bypass.\n"))
}

// 没有 description 列时正文就是 transcription 本身。
func TestParseCSVWithoutDescriptionColumn(t *testing.T) {
	csv := "transcription\nsome medical text here\n"
	docs, err := ParseCSV("notes.csv", []byte(csv))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "some medical text here", docs[0].Text)
}

func TestParseCSVMissingTranscriptionColumn(t *testing.T) {
	csv := "name,specialty\nfoo,bar\n"
	_, err := ParseCSV("bad.csv", []byte(csv))
	assert.Error(t, err)
}

func TestParseCSVTitleFallback(t *testing.T) {
	csv := "transcription\nsome medical text here\n"
	docs, err := ParseCSV("notes.csv", []byte(csv))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "notes.csv #1", docs[0].Title)
	assert.Empty(t, docs[0].Specialty)
}

func TestParseObjectPlainText(t *testing.T) {
	docs, err := ParseObject("report.txt", []byte("  The patient presented with chest pain.  "))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "report.txt", docs[0].Title)
	assert.Equal(t, "The patient presented with chest pain.", docs[0].Text)
}

func TestParseObjectEmptyText(t *testing.T) {
	docs, err := ParseObject("empty.txt", []byte("   \n  "))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

// 同一来源、同一序号的文档 ID 必须稳定。
func TestDocIDStable(t *testing.T) {
	assert.Equal(t, docID("a.csv", 1), docID("a.csv", 1))
	assert.NotEqual(t, docID("a.csv", 1), docID("a.csv", 2))
	assert.NotEqual(t, docID("a.csv", 1), docID("b.csv", 1))
}
