package classifier

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	tflite "github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"
	"github.com/tractorcare/tractorcare-go/internal/conf"
	"github.com/tractorcare/tractorcare-go/internal/errors"
)

// TFLiteClassifier runs the anomaly model through the TensorFlow Lite
// interpreter. The interpreter is not safe for concurrent invocation, so
// predictions are serialized with a mutex.
type TFLiteClassifier struct {
	Settings *conf.Settings

	interpreter *tflite.Interpreter
	model       *tflite.Model
	modelName   string
	mu          sync.Mutex
}

// NewTFLite loads the model from Settings.Classifier.ModelPath and prepares
// the interpreter.
func NewTFLite(settings *conf.Settings) (*TFLiteClassifier, error) {
	start := time.Now()

	modelPath := settings.Classifier.ModelPath
	if modelPath == "" {
		return nil, errors.Newf("classifier model path is not configured").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}

	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model from %s", modelPath).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Context("model_path", modelPath).
			Build()
	}

	threads := settings.Classifier.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	options := tflite.NewInterpreterOptions()
	if settings.Classifier.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))})
		if delegate == nil {
			getLogger().Warn("Failed to create XNNPACK delegate, falling back to default CPU")
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(threads)
	}

	options.SetErrorReporter(func(msg string, userData any) {
		getLogger().Error("TFLite error", "message", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, errors.Newf("cannot create TensorFlow Lite interpreter").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Context("model_path", modelPath).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, errors.Newf("tensor allocation failed").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Context("model_path", modelPath).
			Build()
	}

	getLogger().Info("Classifier model initialized",
		"model_path", modelPath,
		"threads", threads,
		"use_xnnpack", settings.Classifier.UseXNNPACK,
		"load_ms", time.Since(start).Milliseconds())

	return &TFLiteClassifier{
		Settings:    settings,
		interpreter: interpreter,
		model:       model,
		modelName:   fmt.Sprintf("tflite:%s", modelPath),
	}, nil
}

// ModelName identifies the loaded model in prediction records.
func (c *TFLiteClassifier) ModelName() string {
	return c.modelName
}

// Predict runs one inference. The model outputs a single sigmoid unit, read
// as the anomaly probability. Invocation cannot be interrupted, so a context
// deadline abandons the in-flight run and returns a timeout error.
func (c *TFLiteClassifier) Predict(ctx context.Context, features []float64) (float64, error) {
	type result struct {
		score float64
		err   error
	}
	done := make(chan result, 1)

	go func() {
		score, err := c.invoke(features)
		done <- result{score: score, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, errors.New(ctx.Err()).
			Component("classifier").
			Category(errors.CategoryTimeout).
			Context("operation", "predict").
			Build()
	case r := <-done:
		return r.score, r.err
	}
}

func (c *TFLiteClassifier) invoke(features []float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inputTensor := c.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return 0, errors.Newf("cannot get input tensor").
			Component("classifier").
			Category(errors.CategoryInference).
			Build()
	}

	input := inputTensor.Float32s()
	if len(input) != len(features) {
		return 0, errors.Newf("feature length %d does not match model input %d",
			len(features), len(input)).
			Component("classifier").
			Category(errors.CategoryInference).
			Context("feature_length", len(features)).
			Context("model_input_length", len(input)).
			Build()
	}
	for i, v := range features {
		input[i] = float32(v)
	}

	if status := c.interpreter.Invoke(); status != tflite.OK {
		return 0, errors.Newf("tensor invoke failed").
			Component("classifier").
			Category(errors.CategoryInference).
			Build()
	}

	outputTensor := c.interpreter.GetOutputTensor(0)
	if outputTensor == nil {
		return 0, errors.Newf("cannot get output tensor").
			Component("classifier").
			Category(errors.CategoryInference).
			Build()
	}
	output := outputTensor.Float32s()
	if len(output) == 0 {
		return 0, errors.Newf("model produced empty output").
			Component("classifier").
			Category(errors.CategoryInference).
			Build()
	}

	return float64(output[0]), nil
}

// Close releases the interpreter and model.
func (c *TFLiteClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
	if c.model != nil {
		c.model.Delete()
		c.model = nil
	}
	return nil
}
