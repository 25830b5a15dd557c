// export.go - Single-Pass Streaming Export
//
// Writes the 256-byte header, the norm section, then the quantized
// section, all in a fixed traversal order. Per-tensor
// quantization runs concurrently via errgroup (c.f. WriteGGUF's parallel
// tensor write in fs/ggml/gguf_write.go), but — unlike WriteGGUF's
// independent offset writers — results are drained through a channel by
// a single sequential writer goroutine so the output stream is never
// seeked into out of the fixed traversal order.
package convert

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/PieBru/pico-qwen/artifact"
	"github.com/PieBru/pico-qwen/quant"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ProgressFunc reports export progress, mirroring ollama's
// api.ProgressResponse callback style (server/create_convert_safetensors.go).
type ProgressFunc func(status string, done, total int)

// Options configures Export.
type Options struct {
	GroupSize uint32
	Progress  ProgressFunc
}

func (o Options) groupSize() uint32 {
	if o.GroupSize == 0 {
		return 64
	}
	return o.GroupSize
}

func (o Options) report(status string, done, total int) {
	if o.Progress != nil {
		o.Progress(status, done, total)
	}
}

type layerNames struct {
	attnNorm, ffnNorm, qNorm, kNorm string
	wq, wk, wv, wo, gate, down, up  string
}

func namesForLayer(l int) layerNames {
	p := fmt.Sprintf("model.layers.%d.", l)
	return layerNames{
		attnNorm: p + "input_layernorm.weight",
		ffnNorm:  p + "post_attention_layernorm.weight",
		qNorm:    p + "self_attn.q_norm.weight",
		kNorm:    p + "self_attn.k_norm.weight",
		wq:       p + "self_attn.q_proj.weight",
		wk:       p + "self_attn.k_proj.weight",
		wv:       p + "self_attn.v_proj.weight",
		wo:       p + "self_attn.o_proj.weight",
		gate:     p + "mlp.gate_proj.weight",
		down:     p + "mlp.down_proj.weight",
		up:       p + "mlp.up_proj.weight",
	}
}

const (
	embedTokensName = "model.embed_tokens.weight"
	finalNormName   = "model.norm.weight"
	lmHeadName      = "lm_head.weight"
)

// Export runs the full config.json + safetensors -> artifact conversion
// and writes the sidecar tokenizer file alongside it.
func Export(fsys fs.FS, artifactPath, tokenizerPath string, opt Options) error {
	groupSize := opt.groupSize()

	header, err := LoadConfig(fsys, groupSize)
	if err != nil {
		return err
	}

	shards, err := OpenShards(fsys)
	if err != nil {
		return err
	}

	if err := exportArtifact(fsys, shards, header, artifactPath, opt); err != nil {
		return err
	}

	return ExportTokenizer(fsys, tokenizerPath)
}

func exportArtifact(fsys fs.FS, shards *ShardSet, header artifact.Header, outPath string, opt Options) error {
	dir := filepath.Dir(outPath)
	tmp, err := os.CreateTemp(dir, "pico-qwen-export-"+uuid.NewString()+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	if err := artifact.WriteHeader(tmp, header); err != nil {
		return err
	}

	if err := writeNormSection(shards, header, tmp, opt); err != nil {
		return err
	}

	digest, err := writeQuantizedSection(shards, header, tmp, opt)
	if err != nil {
		return err
	}

	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return err
	}

	slog.Info("export complete", "artifact", outPath, "content_digest", fmt.Sprintf("%016x", digest))
	return nil
}

// writeNormSection streams the unquantized float32 vectors in a fixed
// order: attn-norm per layer, ffn-norm per layer, q-norm per layer,
// k-norm per layer, final norm.
func writeNormSection(shards *ShardSet, h artifact.Header, w io.Writer, opt Options) error {
	nLayers := int(h.NLayers)

	group := func(pick func(layerNames) string) error {
		for l := 0; l < nLayers; l++ {
			name := pick(namesForLayer(l))
			vals, err := shards.ReadFloat32(name)
			if err != nil {
				return err
			}
			if err := writeFloat32Vector(w, vals); err != nil {
				return err
			}
		}
		return nil
	}

	opt.report("writing norm section", 0, 5)
	if err := group(func(n layerNames) string { return n.attnNorm }); err != nil {
		return err
	}
	opt.report("writing norm section", 1, 5)
	if err := group(func(n layerNames) string { return n.ffnNorm }); err != nil {
		return err
	}
	opt.report("writing norm section", 2, 5)
	if err := group(func(n layerNames) string { return n.qNorm }); err != nil {
		return err
	}
	opt.report("writing norm section", 3, 5)
	if err := group(func(n layerNames) string { return n.kNorm }); err != nil {
		return err
	}
	opt.report("writing norm section", 4, 5)

	finalNorm, err := shards.ReadFloat32(finalNormName)
	if err != nil {
		return err
	}
	if err := writeFloat32Vector(w, finalNorm); err != nil {
		return err
	}
	opt.report("writing norm section", 5, 5)
	return nil
}

func writeFloat32Vector(w io.Writer, vals []float32) error {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	_, err := w.Write(buf)
	return err
}

// quantJob is one tensor's quantization unit of work, ordered by index
// in the fixed export traversal.
type quantJob struct {
	index int
	name  string
	rows  int
	cols  int
}

// writeQuantizedSection quantizes every tensor in the fixed traversal
// order concurrently, then drains results through a single sequential writer
// so the output bytes land in traversal order regardless of which
// worker finished first. Returns an xxhash digest of the section for the
// export log line.
func writeQuantizedSection(shards *ShardSet, h artifact.Header, w io.Writer, opt Options) (uint64, error) {
	dim, hidden, headDim := int(h.Dim), int(h.HiddenDim), int(h.HeadDim())
	kvDim := int(h.NKVHeads) * headDim

	var jobs []quantJob
	for l := 0; l < int(h.NLayers); l++ {
		n := namesForLayer(l)
		jobs = append(jobs,
			quantJob{name: n.wq, rows: dim, cols: dim},
			quantJob{name: n.wk, rows: kvDim, cols: dim},
			quantJob{name: n.wv, rows: kvDim, cols: dim},
			quantJob{name: n.wo, rows: dim, cols: dim},
			quantJob{name: n.gate, rows: hidden, cols: dim},
			quantJob{name: n.down, rows: dim, cols: hidden},
			quantJob{name: n.up, rows: hidden, cols: dim},
		)
	}
	jobs = append(jobs, quantJob{name: embedTokensName, rows: int(h.VocabSize), cols: dim})
	if !h.SharedClassifier {
		jobs = append(jobs, quantJob{name: lmHeadName, rows: int(h.VocabSize), cols: dim})
	}
	for i := range jobs {
		jobs[i].index = i
	}

	type result struct {
		index int
		bytes []byte
	}

	results := make(chan result, len(jobs))
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			vals, err := shards.ReadFloat32(job.name)
			if err != nil {
				return err
			}
			t, err := QuantizeMatrix(job.name, vals, job.rows, job.cols, int(h.GroupSize))
			if err != nil {
				return err
			}
			results <- result{index: job.index, bytes: encodeTensor(t)}
			return nil
		})
	}

	done := make(chan error, 1)
	digest := xxhash.New()
	go func() {
		pending := make(map[int][]byte)
		next := 0
		written := 0
		for written < len(jobs) {
			r, ok := <-results
			if !ok {
				done <- fmt.Errorf("convert: result channel closed early")
				return
			}
			pending[r.index] = r.bytes
			for {
				b, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				if _, err := w.Write(b); err != nil {
					done <- err
					return
				}
				digest.Write(b)
				next++
				written++
				opt.report("quantizing tensors", written, len(jobs))
			}
		}
		done <- nil
	}()

	waitErr := g.Wait()
	close(results)
	writerErr := <-done
	if waitErr != nil {
		return 0, waitErr
	}
	if writerErr != nil {
		return 0, writerErr
	}

	return digest.Sum64(), nil
}

// encodeTensor serializes a quantized tensor in artifact layout: all
// INT8 values, then all group-scale float32s, no inter-tensor padding.
func encodeTensor(t *quant.Tensor) []byte {
	buf := make([]byte, len(t.Values)+4*len(t.Scales))
	for i, v := range t.Values {
		buf[i] = byte(v)
	}
	base := len(t.Values)
	for i, s := range t.Scales {
		binary.LittleEndian.PutUint32(buf[base+i*4:], math.Float32bits(s))
	}
	return buf
}
