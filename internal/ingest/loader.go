package ingest

import (
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"

	"medisecure-go/internal/model"
	"medisecure-go/pkg/log"
)

// ParseObject 根据对象名后缀选择解析方式：.csv 按医疗转录表格解析，
// 其余按纯文本处理（整个对象一篇文档）。
func ParseObject(objectName string, data []byte) ([]model.Document, error) {
	if strings.EqualFold(path.Ext(objectName), ".csv") {
		return ParseCSV(objectName, data)
	}
	return parseText(objectName, data)
}

// ParseCSV 解析医疗转录 CSV（mtsamples 格式），每行一篇文档。
// 通过表头定位列：sample_name / medical_specialty / transcription / description。
// description 是病例摘要，拼在正文前面一起进入索引。
// transcription 为空的行跳过。
func ParseCSV(objectName string, data []byte) ([]model.Document, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取 CSV 表头失败: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	textCol, ok := cols["transcription"]
	if !ok {
		return nil, fmt.Errorf("CSV 缺少 transcription 列: %s", objectName)
	}
	titleCol, hasTitle := cols["sample_name"]
	specialtyCol, hasSpecialty := cols["medical_specialty"]
	descCol, hasDesc := cols["description"]

	var docs []model.Document
	ordinal := 0
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取 CSV 行失败: %w", err)
		}
		ordinal++

		text := ""
		if textCol < len(record) {
			text = strings.TrimSpace(record[textCol])
		}
		if text == "" {
			skipped++
			continue
		}
		if hasDesc && descCol < len(record) {
			if desc := strings.TrimSpace(record[descCol]); desc != "" {
				text = desc + "\n" + text
			}
		}

		doc := model.Document{
			ID:     docID(objectName, ordinal),
			Source: objectName,
			Text:   text,
		}
		if hasTitle && titleCol < len(record) {
			doc.Title = strings.TrimSpace(record[titleCol])
		}
		if doc.Title == "" {
			doc.Title = fmt.Sprintf("%s #%d", objectName, ordinal)
		}
		if hasSpecialty && specialtyCol < len(record) {
			doc.Specialty = strings.TrimSpace(record[specialtyCol])
		}
		docs = append(docs, doc)
	}

	log.Infof("[Ingest] 解析 CSV '%s' 完成: %d 篇文档, 跳过 %d 行空转录", objectName, len(docs), skipped)
	return docs, nil
}

// parseText 将纯文本对象作为单篇文档。
func parseText(objectName string, data []byte) ([]model.Document, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []model.Document{{
		ID:     docID(objectName, 1),
		Title:  objectName,
		Source: objectName,
		Text:   text,
	}}, nil
}

// docID 由来源对象名与行序号生成稳定的文档标识。
func docID(objectName string, ordinal int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s#%d", objectName, ordinal)))
	return hex.EncodeToString(sum[:])
}
