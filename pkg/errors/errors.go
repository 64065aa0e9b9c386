// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// 木の成長中に発生するエラーは FitError / NonConvergence / NoValidSplit /
// InvalidConfiguration の4種類に分類され、それぞれ errors.Is で判定できます。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("mobtree-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
// NonConvergence などの警告の処理方法を制御できます。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nil を渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrFit はモデルの当てはめに失敗したことを示します。
	ErrFit = New("fit error")

	// ErrNonConvergence は反復法が上限回数内に収束しなかったことを示します。
	ErrNonConvergence = New("non-convergence")

	// ErrNoValidSplit は最小ノードサイズを満たす分割候補が存在しないことを示します。
	ErrNoValidSplit = New("no valid split")

	// ErrInvalidConfiguration は設定値が不正であることを示します。
	ErrInvalidConfiguration = New("invalid configuration")

	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は特異行列の場合のエラーです。
	ErrSingularMatrix = New("singular matrix")
)

// ===========================================================================
//
//	木の成長に関するエラー型
//
// ===========================================================================

// FitError はノードの部分集合に対するモデルの当てはめが失敗した場合のエラーです。
// 観測数がパラメータ数より少ない場合や、計画行列がランク落ちしている場合に発生します。
// 木の構築中は該当ノードを葉にすることで回復されます。
type FitError struct {
	Family string
	Reason string
	Rows   int
	Params int
	Err    error
}

func (e *FitError) Error() string {
	msg := fmt.Sprintf("mobtree: %s fit failed on %d rows with %d parameters: %s", e.Family, e.Rows, e.Params, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FitError) Unwrap() error { return e.Err }

// Is reports whether target is ErrFit.
func (e *FitError) Is(target error) bool { return target == ErrFit }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *FitError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("family", e.Family).
		Str("reason", e.Reason).
		Int("rows", e.Rows).
		Int("params", e.Params).
		Str("type", "FitError")
}

// NewFitError は新しいFitErrorを作成し、スタックトレースを付与します。
func NewFitError(family, reason string, rows, params int, cause error) error {
	return errors.WithStack(&FitError{Family: family, Reason: reason, Rows: rows, Params: params, Err: cause})
}

// NonConvergence は反復再重み付け最小二乗法が最大反復回数に達した場合の警告です。
// 通常はノードの当てはめに添付される警告として扱われ、strict モードでのみ致命的エラーになります。
type NonConvergence struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *NonConvergence) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing the iteration cap.", w.Algorithm, w.Iterations)
}

// Is reports whether target is ErrNonConvergence.
func (w *NonConvergence) Is(target error) bool { return target == ErrNonConvergence }

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *NonConvergence) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "NonConvergence")
}

// NewNonConvergence は新しいNonConvergenceを作成します。
func NewNonConvergence(algorithm string, iterations int, message string) *NonConvergence {
	return &NonConvergence{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// NoValidSplit は分割変数に対して有効な分割点が見つからなかった場合のエラーです。
type NoValidSplit struct {
	Variable   string
	Rows       int
	MinSize    int
	Candidates int
}

func (e *NoValidSplit) Error() string {
	return fmt.Sprintf("mobtree: no valid split on %q for %d rows (minsize %d, %d candidates tried)",
		e.Variable, e.Rows, e.MinSize, e.Candidates)
}

// Is reports whether target is ErrNoValidSplit.
func (e *NoValidSplit) Is(target error) bool { return target == ErrNoValidSplit }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NoValidSplit) MarshalZerologObject(event *zerolog.Event) {
	event.Str("variable", e.Variable).
		Int("rows", e.Rows).
		Int("minsize", e.MinSize).
		Int("candidates", e.Candidates).
		Str("type", "NoValidSplit")
}

// NewNoValidSplit は新しいNoValidSplitを作成し、スタックトレースを付与します。
func NewNoValidSplit(variable string, rows, minSize, candidates int) error {
	return errors.WithStack(&NoValidSplit{Variable: variable, Rows: rows, MinSize: minSize, Candidates: candidates})
}

// InvalidConfiguration は設定値の検証に失敗した場合のエラーです。
// 木の成長を開始する前に返され、部分的な木は生成されません。
type InvalidConfiguration struct {
	Option string
	Reason string
	Value  interface{}
}

func (e *InvalidConfiguration) Error() string {
	return fmt.Sprintf("mobtree: invalid configuration for %q: %s (got: %v)", e.Option, e.Reason, e.Value)
}

// Is reports whether target is ErrInvalidConfiguration.
func (e *InvalidConfiguration) Is(target error) bool { return target == ErrInvalidConfiguration }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InvalidConfiguration) MarshalZerologObject(event *zerolog.Event) {
	event.Str("option", e.Option).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "InvalidConfiguration")
}

// NewInvalidConfiguration は新しいInvalidConfigurationを作成し、スタックトレースを付与します。
func NewInvalidConfiguration(option, reason string, value interface{}) error {
	return errors.WithStack(&InvalidConfiguration{Option: option, Reason: reason, Value: value})
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError は学習されていない木で予測しようとした場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("mobtree: %s: this model is not fitted yet. Grow it before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns
}

func (e *DimensionError) Error() string {
	axisName := "columns"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("mobtree: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力データの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mobtree: validation failed for '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("mobtree: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}
