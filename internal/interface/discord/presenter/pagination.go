// Package presenter форматирует таблицы лидеров для чата: колонки, легенда
// ступеней, стрелки смещения и сообщения об ошибках.
package presenter

import "strings"

// DefaultColumnSize - строк в одной колонке таблицы.
const DefaultColumnSize = 21

// Paginate режет список на колонки по size элементов.
// Последняя колонка может быть короче. Пустой список даёт nil.
func Paginate[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultColumnSize
	}
	if len(items) == 0 {
		return nil
	}

	pages := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		pages = append(pages, items[start:end])
	}
	return pages
}

var nameEscaper = strings.NewReplacer(`_`, `\_`)

// EscapeName экранирует подчёркивания, чтобы имя не превратилось в курсив.
func EscapeName(name string) string {
	return nameEscaper.Replace(name)
}
