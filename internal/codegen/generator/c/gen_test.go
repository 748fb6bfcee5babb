package cgen

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickgen/brickgen/internal/codegen/meta"
	fixtures "github.com/brickgen/brickgen/internal/testing"
	"github.com/brickgen/brickgen/model"
)

func generate(t *testing.T) (dir string, released []string) {
	t.Helper()
	reg := fixtures.Registry(t)
	d, err := reg.NewDevice(fixtures.Raw(t, fixtures.StreamDevice))
	require.NoError(t, err)

	dir = t.TempDir()
	md := meta.New(reg, []*model.Device{d}, "tf")
	released, err = Generate(slog.New(slog.DiscardHandler), dir, md)
	require.NoError(t, err)
	return dir, released
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestGenerateLayout(t *testing.T) {
	dir, released := generate(t)

	assert.Equal(t, []string{"include/tf_stream_test_bricklet.h", "src/tf_stream_test_bricklet.c"}, released)
	for _, f := range []string{
		"include/tf_device.h",
		"src/tf_device.c",
		"CMakeLists.txt",
		"LICENSE.txt",
		"README.md",
	} {
		assert.FileExists(t, filepath.Join(dir, f))
	}
	cmake := readFile(t, filepath.Join(dir, "CMakeLists.txt"))
	assert.Contains(t, cmake, "src/tf_device.c\n    src/tf_stream_test_bricklet.c\n")
}

func TestDeviceHeader(t *testing.T) {
	dir, _ := generate(t)
	h := readFile(t, filepath.Join(dir, "include", "tf_stream_test_bricklet.h"))

	for _, want := range []string{
		"#ifndef TF_STREAM_TEST_BRICKLET_H",
		`#include "tf_device.h"`,
		"typedef Device StreamTestBricklet;",
		"#define STREAM_TEST_BRICKLET_FUNCTION_WRITE_MESSAGE_LOW_LEVEL 1",
		"#define STREAM_TEST_BRICKLET_FUNCTION_SET_MODE 10",
		"#define STREAM_TEST_BRICKLET_CALLBACK_TEMPERATURE 12",
		"#define STREAM_TEST_BRICKLET_CALLBACK_DATA_LOW_LEVEL 13",
		"typedef void (*StreamTestBrickletTemperatureHandler)(int32_t temperature, void *user_data);",
		"typedef void (*StreamTestBrickletDataLowLevelHandler)(uint16_t data_length, uint16_t data_chunk_offset, uint8_t *data_chunk_data, void *user_data);",
		"#define STREAM_TEST_BRICKLET_MODE_OFF 0",
		"#define STREAM_TEST_BRICKLET_MODE_SLOW 2",
		"#define STREAM_TEST_BRICKLET_DEVICE_IDENTIFIER 9100",
		`#define STREAM_TEST_BRICKLET_DEVICE_DISPLAY_NAME "Stream Test Bricklet"`,
		"int stream_test_bricklet_create(StreamTestBricklet *stream_test_bricklet, const char *uid, DeviceTransportFunction transport, void *opaque);",
		"int stream_test_bricklet_get_temperature(StreamTestBricklet *stream_test_bricklet, int32_t *ret_temperature);",
		"int stream_test_bricklet_set_mode(StreamTestBricklet *stream_test_bricklet, uint8_t mode);",
		" * Returns the temperature.",
	} {
		assert.Contains(t, h, want)
	}
	assert.NotContains(t, h, "get_identity", "doc-only packets have no C function")
}

func TestStreamFunctionShapes(t *testing.T) {
	dir, _ := generate(t)
	h := readFile(t, filepath.Join(dir, "include", "tf_stream_test_bricklet.h"))

	tests := []struct {
		name  string
		proto string
	}{
		{"variable short write", "int stream_test_bricklet_write_message(StreamTestBricklet *stream_test_bricklet, const char *message, uint16_t message_length, uint16_t *ret_message_written);"},
		{"variable", "int stream_test_bricklet_set_pattern(StreamTestBricklet *stream_test_bricklet, const uint8_t *pattern, uint16_t pattern_length);"},
		{"fixed length in", "int stream_test_bricklet_set_samples(StreamTestBricklet *stream_test_bricklet, const uint16_t *samples);"},
		{"single chunk in", "int stream_test_bricklet_set_text(StreamTestBricklet *stream_test_bricklet, const char *text, uint8_t text_length);"},
		{"single chunk short write", "int stream_test_bricklet_set_label(StreamTestBricklet *stream_test_bricklet, const char *label, uint8_t label_length, uint8_t *ret_label_written);"},
		{"fixed length out", "int stream_test_bricklet_read_frame(StreamTestBricklet *stream_test_bricklet, uint8_t *ret_frame, uint16_t *ret_frame_length);"},
		{"variable out with extra input", "int stream_test_bricklet_get_values(StreamTestBricklet *stream_test_bricklet, uint8_t channel, int16_t *ret_values, uint16_t *ret_values_length);"},
		{"single chunk out", "int stream_test_bricklet_get_status(StreamTestBricklet *stream_test_bricklet, bool *ret_status, uint8_t *ret_status_length);"},
		{"low level", "int stream_test_bricklet_write_message_low_level(StreamTestBricklet *stream_test_bricklet, uint16_t message_length, uint16_t message_chunk_offset, const char message_chunk_data[60], uint8_t *ret_message_chunk_written);"},
		{"low level bools", "int stream_test_bricklet_get_status_low_level(StreamTestBricklet *stream_test_bricklet, uint8_t *ret_status_length, bool ret_status_data[40]);"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, h, tt.proto)
		})
	}
}

func TestDeviceSource(t *testing.T) {
	dir, _ := generate(t)
	c := readFile(t, filepath.Join(dir, "src", "tf_stream_test_bricklet.c"))

	for _, want := range []string{
		"} ATTRIBUTE_PACKED WriteMessageLowLevel_Request;",
		"\tuint8_t status_data[5];\n} ATTRIBUTE_PACKED GetStatusLowLevel_Response;",
		"\tdevice_p->response_expected[STREAM_TEST_BRICKLET_FUNCTION_GET_TEMPERATURE] = DEVICE_RESPONSE_EXPECTED_ALWAYS_TRUE;",
		"\tdevice_p->response_expected[STREAM_TEST_BRICKLET_FUNCTION_SET_PATTERN_LOW_LEVEL] = DEVICE_RESPONSE_EXPECTED_TRUE;",
		"\tdevice_p->response_expected[STREAM_TEST_BRICKLET_FUNCTION_SET_MODE] = DEVICE_RESPONSE_EXPECTED_FALSE;",
		"\tdevice_p->callback_wrappers[STREAM_TEST_BRICKLET_CALLBACK_TEMPERATURE] = stream_test_bricklet_callback_wrapper_temperature;",
		"\trequest.message_length = leconvert_uint16_to(message_length);",
		"\tmemcpy(request.message_chunk_data, message_chunk_data, 60 * sizeof(char));",
		"\t*ret_temperature = leconvert_int32_from(response->temperature);",
		"\tfor (i = 0; i < 40; i++) ret_status_data[i] = (response->status_data[i / 8] & (1 << (i % 8))) != 0;",
		"\tret = device_send_request(device_p, (Packet *)&request, &response_packet, 4);",
		"\tcallback->temperature = leconvert_int32_from(callback->temperature);",
		"\tcallback_function(callback->temperature, user_data);",
	} {
		assert.Contains(t, c, want)
	}
}

func TestStreamBodies(t *testing.T) {
	dir, _ := generate(t)
	c := readFile(t, filepath.Join(dir, "src", "tf_stream_test_bricklet.c"))

	t.Run("short write stops on partial chunk", func(t *testing.T) {
		assert.Contains(t, c, "\t\t\t*ret_message_written += message_chunk_written;")
		assert.Contains(t, c, "\t\t\tif (message_chunk_written < 60) {")
	})
	t.Run("multi chunk calls hold the stream mutex", func(t *testing.T) {
		assert.Contains(t, c, "\t\tmutex_lock(&device_p->stream_mutex);\n\n\t\twhile (pattern_chunk_offset < pattern_length) {")
		assert.Contains(t, c, "\tmutex_lock(&device_p->stream_mutex);\n\n\twhile (samples_chunk_offset < 100) {")
	})
	t.Run("empty variable value sends one zeroed chunk", func(t *testing.T) {
		assert.Contains(t, c, "\tif (pattern_length == 0) {\n\t\tmemset(&pattern_chunk_data, 0, sizeof(uint8_t) * 30);")
	})
	t.Run("single chunk rejects long values", func(t *testing.T) {
		assert.Contains(t, c, "\tif (text_length > 48) {\n\t\treturn E_INVALID_PARAMETER;")
		assert.Contains(t, c, "\tif (status_length > 40) {\n\t\treturn E_INVALID_PARAMETER;")
	})
	t.Run("fixed length sentinel", func(t *testing.T) {
		assert.Contains(t, c, "\tif (frame_chunk_offset == 0xFFFF) { // no data")
		assert.NotContains(t, c, "values_chunk_offset == 0xFFFF")
	})
	t.Run("out of sync drains", func(t *testing.T) {
		assert.Contains(t, c, "\t\tvalues_out_of_sync = values_chunk_offset != *ret_values_length || values_length != values_length_expected;")
		assert.Contains(t, c, "\twhile (values_chunk_offset + 30 < values_length) {")
		assert.Contains(t, c, "\tret = E_STREAM_OUT_OF_SYNC;")
	})
	t.Run("low level call passes extra parameters", func(t *testing.T) {
		assert.Contains(t, c, "ret = stream_test_bricklet_get_values_low_level(stream_test_bricklet, channel, &values_length, &values_chunk_offset, values_chunk_data);")
	})
}

func TestCommonRuntime(t *testing.T) {
	dir, _ := generate(t)
	h := readFile(t, filepath.Join(dir, "include", "tf_device.h"))
	c := readFile(t, filepath.Join(dir, "src", "tf_device.c"))

	assert.Contains(t, h, "#ifndef TF_DEVICE_H")
	assert.Contains(t, h, "typedef int (*DeviceTransportFunction)(void *opaque, Packet *request, Packet *response);")
	assert.Contains(t, h, "#define E_STREAM_OUT_OF_SYNC -12")
	assert.Contains(t, c, `static const char BASE58_ALPHABET[] = "123456789abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ";`)
	assert.Contains(t, c, "\tdevice_p->sequence_number = device_p->sequence_number % 15 + 1;")
	assert.Contains(t, c, "float leconvert_float_to(float native) {")
	assert.Contains(t, c, "uint64_t leconvert_uint64_from(uint64_t little) {")
}
