package model

import (
	"encoding/json"
	"io"
	"os"

	"github.com/YuminosukeSato/mobtree/pkg/errors"
)

// SaveJSON は v をインデント付きJSONとしてファイルに保存する
//
// 使用例:
//
//	err := model.SaveJSON(tree.Export(), "tree.json")
func SaveJSON(v interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", filename)
	}
	defer file.Close()

	return SaveJSONToWriter(v, file)
}

// LoadJSON はファイルからJSONを読み込み v に格納する
func LoadJSON(v interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", filename)
	}
	defer file.Close()

	return LoadJSONFromReader(v, file)
}

// SaveJSONToWriter は v をWriterにJSONとして書き出す
func SaveJSONToWriter(v interface{}, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadJSONFromReader はReaderからJSONを読み込み v に格納する
func LoadJSONFromReader(v interface{}, r io.Reader) error {
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
