package cgen

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/template"

	"github.com/brickgen/brickgen/internal/codegen/common"
	"github.com/brickgen/brickgen/internal/codegen/meta"
)

const commonSourceTmpl = `{{.Banner}}
#include <stdlib.h>
#include <string.h>

#include "{{.Header}}"

#ifdef _WIN32

void mutex_create(Mutex *mutex) {
	InitializeCriticalSection(mutex);
}

void mutex_destroy(Mutex *mutex) {
	DeleteCriticalSection(mutex);
}

void mutex_lock(Mutex *mutex) {
	EnterCriticalSection(mutex);
}

void mutex_unlock(Mutex *mutex) {
	LeaveCriticalSection(mutex);
}

#else

void mutex_create(Mutex *mutex) {
	pthread_mutex_init(mutex, NULL);
}

void mutex_destroy(Mutex *mutex) {
	pthread_mutex_destroy(mutex);
}

void mutex_lock(Mutex *mutex) {
	pthread_mutex_lock(mutex);
}

void mutex_unlock(Mutex *mutex) {
	pthread_mutex_unlock(mutex);
}

#endif

static const char BASE58_ALPHABET[] = "{{.Alphabet}}";

int base58_decode(const char *base58, uint32_t *value) {
	int i;
	const char *p;
	uint64_t base = 1;
	uint64_t value64 = 0;
	uint64_t column;
	uint32_t value1, value2;
	int length = (int)strlen(base58);

	if (length == 0) {
		return E_INVALID_UID;
	}

	for (i = length - 1; i >= 0; i--) {
		p = strchr(BASE58_ALPHABET, base58[i]);

		if (p == NULL || base58[i] == '\0') {
			return E_INVALID_UID;
		}

		column = (uint64_t)(p - BASE58_ALPHABET);

		if (column > UINT64_MAX / base) {
			return E_INVALID_UID;
		}

		column *= base;

		if (value64 > UINT64_MAX - column) {
			return E_INVALID_UID;
		}

		value64 += column;

		if (i > 0 && base > UINT64_MAX / 58) {
			return E_INVALID_UID;
		}

		base *= 58;
	}

	if (value64 > 0xFFFFFFFF) {
		value1 = value64 & 0xFFFFFFFF;
		value2 = (value64 >> 32) & 0xFFFFFFFF;

		*value = (value1 & 0x00000FFF)
		       | (value1 & 0x0F000000) >> 12
		       | (value2 & 0x0000003F) << 16
		       | (value2 & 0x000F0000) << 6
		       | (value2 & 0x3F000000) << 2;
	} else {
		*value = (uint32_t)value64;
	}

	return E_OK;
}

int device_create(Device *device, const char *uid, uint16_t device_identifier,
                  uint8_t api_version_major, uint8_t api_version_minor, uint8_t api_version_release,
                  DeviceTransportFunction transport, void *opaque) {
	DevicePrivate *device_p;
	int ret;

	device_p = (DevicePrivate *)malloc(sizeof(DevicePrivate));

	if (device_p == NULL) {
		return E_NOT_ADDED;
	}

	memset(device_p, 0, sizeof(DevicePrivate));

	ret = base58_decode(uid, &device_p->uid);

	if (ret < 0) {
		free(device_p);

		return ret;
	}

	device_p->api_version[0] = api_version_major;
	device_p->api_version[1] = api_version_minor;
	device_p->api_version[2] = api_version_release;
	device_p->device_identifier = device_identifier;
	device_p->transport = transport;
	device_p->opaque = opaque;

	mutex_create(&device_p->request_mutex);
	mutex_create(&device_p->stream_mutex);

	device->p = device_p;

	return E_OK;
}

void device_release(Device *device) {
	DevicePrivate *device_p = device->p;

	if (device_p == NULL) {
		return;
	}

	mutex_destroy(&device_p->request_mutex);
	mutex_destroy(&device_p->stream_mutex);

	free(device_p);

	device->p = NULL;
}

int device_get_response_expected(DevicePrivate *device_p, uint8_t function_id, bool *ret_response_expected) {
	int flag = device_p->response_expected[function_id];

	if (flag == DEVICE_RESPONSE_EXPECTED_INVALID_FUNCTION_ID) {
		return E_INVALID_PARAMETER;
	}

	*ret_response_expected = flag == DEVICE_RESPONSE_EXPECTED_ALWAYS_TRUE ||
	                         flag == DEVICE_RESPONSE_EXPECTED_TRUE;

	return E_OK;
}

int device_set_response_expected(DevicePrivate *device_p, uint8_t function_id, bool response_expected) {
	int current_flag = device_p->response_expected[function_id];

	if (current_flag != DEVICE_RESPONSE_EXPECTED_TRUE &&
	    current_flag != DEVICE_RESPONSE_EXPECTED_FALSE) {
		return E_INVALID_PARAMETER;
	}

	device_p->response_expected[function_id] =
		response_expected ? DEVICE_RESPONSE_EXPECTED_TRUE : DEVICE_RESPONSE_EXPECTED_FALSE;

	return E_OK;
}

void device_set_response_expected_all(DevicePrivate *device_p, bool response_expected) {
	int flag = response_expected ? DEVICE_RESPONSE_EXPECTED_TRUE : DEVICE_RESPONSE_EXPECTED_FALSE;
	int i;

	for (i = 0; i < DEVICE_NUM_FUNCTION_IDS; ++i) {
		if (device_p->response_expected[i] == DEVICE_RESPONSE_EXPECTED_TRUE ||
		    device_p->response_expected[i] == DEVICE_RESPONSE_EXPECTED_FALSE) {
			device_p->response_expected[i] = flag;
		}
	}
}

void device_register_callback(DevicePrivate *device_p, int16_t callback_id,
                              void (*function)(void), void *user_data) {
	device_p->registered_callbacks[callback_id] = (void *)function;
	device_p->registered_callback_user_data[callback_id] = user_data;
}

int device_get_api_version(DevicePrivate *device_p, uint8_t ret_api_version[3]) {
	ret_api_version[0] = device_p->api_version[0];
	ret_api_version[1] = device_p->api_version[1];
	ret_api_version[2] = device_p->api_version[2];

	return E_OK;
}

void packet_header_create(PacketHeader *header, uint8_t length, uint8_t function_id, DevicePrivate *device_p) {
	uint8_t sequence_number;
	bool response_expected = false;

	device_p->sequence_number = device_p->sequence_number % 15 + 1;
	sequence_number = device_p->sequence_number;

	device_get_response_expected(device_p, function_id, &response_expected);

	memset(header, 0, sizeof(PacketHeader));

	header->uid = leconvert_uint32_to(device_p->uid);
	header->length = length;
	header->function_id = function_id;
	header->sequence_number_and_options = (uint8_t)(sequence_number << 4);

	if (response_expected) {
		header->sequence_number_and_options |= 0x01 << 3;
	}
}

int device_send_request(DevicePrivate *device_p, Packet *request, Packet *response, int expected_response_length) {
	int ret;
	uint8_t error_code;
	bool response_expected = (request->header.sequence_number_and_options >> 3) & 0x01;

	mutex_lock(&device_p->request_mutex);

	ret = device_p->transport(device_p->opaque, request, response_expected ? response : NULL);

	mutex_unlock(&device_p->request_mutex);

	if (ret < 0 || !response_expected) {
		return ret;
	}

	error_code = (response->header.error_code_and_future_use >> 6) & 0x03;

	switch (error_code) {
	case 0:
		break;

	case 1:
		return E_INVALID_PARAMETER;

	case 2:
		return E_NOT_SUPPORTED;

	default:
		return E_UNKNOWN_ERROR_CODE;
	}

	if (response->header.length != (uint8_t)(sizeof(PacketHeader) + expected_response_length)) {
		return E_WRONG_RESPONSE_LENGTH;
	}

	return E_OK;
}

void device_dispatch_callback(DevicePrivate *device_p, Packet *packet) {
	CallbackWrapperFunction wrapper = device_p->callback_wrappers[packet->header.function_id];

	if (wrapper != NULL) {
		wrapper(device_p, packet);
	}
}

void string_copy(char *dest, const char *src, size_t n) {
	size_t idx = 0;

	while (src[idx] != '\0' && idx < n) {
		dest[idx] = src[idx];
		++idx;
	}

	while (idx < n) {
		dest[idx] = '\0';
		++idx;
	}
}

static int little_endian(void) {
	uint16_t probe = 1;

	return *(uint8_t *)&probe == 1;
}

#define SWAP_BYTES(native, size) do { \
		uint8_t tmp[8]; \
		int i; \
		memcpy(tmp, &(native), size); \
		for (i = 0; i < (size) / 2; ++i) { \
			uint8_t b = tmp[i]; \
			tmp[i] = tmp[(size) - 1 - i]; \
			tmp[(size) - 1 - i] = b; \
		} \
		memcpy(&(native), tmp, size); \
	} while (0)
{{range .Converters}}
{{.}} leconvert_{{short .}}_to({{.}} native) {
	if (!little_endian()) {
		SWAP_BYTES(native, sizeof(native));
	}

	return native;
}

{{.}} leconvert_{{short .}}_from({{.}} little) {
	return leconvert_{{short .}}_to(little);
}
{{end}}`

func generateCommonSource(logger *slog.Logger, outDir string, md *meta.Metadata) (string, error) {
	header, name := commonFiles(md)
	tmpl, err := template.New("common_source").Funcs(template.FuncMap{
		"short": shortCType,
	}).Parse(commonSourceTmpl)
	if err != nil {
		return "", fmt.Errorf("parse common source template: %w", err)
	}
	data := struct {
		Banner     string
		Header     string
		Alphabet   string
		Converters []string
	}{
		Banner:     common.HeaderComment(common.BlockComment, "C", md.Version()),
		Header:     header,
		Alphabet:   base58Alphabet,
		Converters: []string{"int16_t", "uint16_t", "int32_t", "uint32_t", "int64_t", "uint64_t", "float"},
	}
	out := filepath.Join(outDir, name)
	if err := render(tmpl, data, out); err != nil {
		return "", err
	}
	logger.Info("Generated common source", "file", out)
	return name, nil
}

const base58Alphabet = "123456789abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"

// shortCType drops the _t suffix, "uint16_t" becomes "uint16".
func shortCType(t string) string {
	if len(t) > 2 && t[len(t)-2:] == "_t" {
		return t[:len(t)-2]
	}
	return t
}

func render(tmpl *template.Template, data any, out string) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute %s template: %w", tmpl.Name(), err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("create dir for %s: %w", out, err)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(out), err)
	}
	return nil
}
