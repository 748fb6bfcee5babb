package cgen

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/brickgen/brickgen/internal/codegen/common"
	"github.com/brickgen/brickgen/internal/codegen/meta"
)

const commonHeaderTmpl = `{{.Banner}}
#ifndef {{.Guard}}
#define {{.Guard}}

#ifdef __cplusplus
extern "C" {
#endif

#include <stdbool.h>
#include <stddef.h>
#include <stdint.h>

#ifdef _WIN32
	#include <windows.h>
#else
	#include <pthread.h>
#endif

#if defined(_MSC_VER)
	#define ATTRIBUTE_PACKED
#else
	#define ATTRIBUTE_PACKED __attribute__((packed))
#endif

#define E_OK 0
#define E_TIMEOUT -1
#define E_NO_STREAM_SOCKET -2
#define E_HOSTNAME_INVALID -3
#define E_NO_CONNECT -4
#define E_NO_THREAD -5
#define E_NOT_ADDED -6
#define E_ALREADY_CONNECTED -7
#define E_NOT_CONNECTED -8
#define E_INVALID_PARAMETER -9
#define E_NOT_SUPPORTED -10
#define E_UNKNOWN_ERROR_CODE -11
#define E_STREAM_OUT_OF_SYNC -12
#define E_INVALID_UID -13
#define E_NON_ASCII_CHAR_IN_SECRET -14
#define E_WRONG_DEVICE_TYPE -15
#define E_DEVICE_REPLACED -16
#define E_WRONG_RESPONSE_LENGTH -17

#if defined(_MSC_VER)
	#pragma pack(push)
	#pragma pack(1)
#endif

typedef struct {
	uint32_t uid;
	uint8_t length;
	uint8_t function_id;
	uint8_t sequence_number_and_options;
	uint8_t error_code_and_future_use;
} ATTRIBUTE_PACKED PacketHeader;

typedef struct {
	PacketHeader header;
	uint8_t payload[64];
	uint8_t optional_data[8];
} ATTRIBUTE_PACKED Packet;

#if defined(_MSC_VER)
	#pragma pack(pop)
#endif

enum {
	DEVICE_RESPONSE_EXPECTED_INVALID_FUNCTION_ID = 0,
	DEVICE_RESPONSE_EXPECTED_ALWAYS_TRUE,
	DEVICE_RESPONSE_EXPECTED_ALWAYS_FALSE,
	DEVICE_RESPONSE_EXPECTED_TRUE,
	DEVICE_RESPONSE_EXPECTED_FALSE
};

/**
 * Sends request and waits for response. response is NULL if no response
 * is expected. Returns E_OK or a negative error code.
 */
typedef int (*DeviceTransportFunction)(void *opaque, Packet *request, Packet *response);

typedef void (*CallbackWrapperFunction)(void *device_p, Packet *packet);

#ifdef _WIN32
typedef CRITICAL_SECTION Mutex;
#else
typedef pthread_mutex_t Mutex;
#endif

void mutex_create(Mutex *mutex);
void mutex_destroy(Mutex *mutex);
void mutex_lock(Mutex *mutex);
void mutex_unlock(Mutex *mutex);

#define DEVICE_NUM_FUNCTION_IDS 256

typedef struct {
	uint32_t uid;
	uint8_t api_version[3];
	uint16_t device_identifier;
	uint8_t sequence_number;
	uint8_t response_expected[DEVICE_NUM_FUNCTION_IDS];
	DeviceTransportFunction transport;
	void *opaque;
	Mutex request_mutex;
	Mutex stream_mutex;
	void *registered_callbacks[DEVICE_NUM_FUNCTION_IDS];
	void *registered_callback_user_data[DEVICE_NUM_FUNCTION_IDS];
	CallbackWrapperFunction callback_wrappers[DEVICE_NUM_FUNCTION_IDS];
} DevicePrivate;

typedef struct {
	DevicePrivate *p;
} Device;

int base58_decode(const char *base58, uint32_t *value);

int device_create(Device *device, const char *uid, uint16_t device_identifier,
                  uint8_t api_version_major, uint8_t api_version_minor, uint8_t api_version_release,
                  DeviceTransportFunction transport, void *opaque);

void device_release(Device *device);

int device_get_response_expected(DevicePrivate *device_p, uint8_t function_id, bool *ret_response_expected);

int device_set_response_expected(DevicePrivate *device_p, uint8_t function_id, bool response_expected);

void device_set_response_expected_all(DevicePrivate *device_p, bool response_expected);

void device_register_callback(DevicePrivate *device_p, int16_t callback_id,
                              void (*function)(void), void *user_data);

int device_get_api_version(DevicePrivate *device_p, uint8_t ret_api_version[3]);

void packet_header_create(PacketHeader *header, uint8_t length, uint8_t function_id, DevicePrivate *device_p);

int device_send_request(DevicePrivate *device_p, Packet *request, Packet *response, int expected_response_length);

/**
 * Routes a callback packet received by the transport to the registered
 * wrapper of its function id.
 */
void device_dispatch_callback(DevicePrivate *device_p, Packet *packet);

void string_copy(char *dest, const char *src, size_t n);

int16_t leconvert_int16_to(int16_t native);
uint16_t leconvert_uint16_to(uint16_t native);
int32_t leconvert_int32_to(int32_t native);
uint32_t leconvert_uint32_to(uint32_t native);
int64_t leconvert_int64_to(int64_t native);
uint64_t leconvert_uint64_to(uint64_t native);
float leconvert_float_to(float native);

int16_t leconvert_int16_from(int16_t little);
uint16_t leconvert_uint16_from(uint16_t little);
int32_t leconvert_int32_from(int32_t little);
uint32_t leconvert_uint32_from(uint32_t little);
int64_t leconvert_int64_from(int64_t little);
uint64_t leconvert_uint64_from(uint64_t little);
float leconvert_float_from(float little);

#ifdef __cplusplus
}
#endif

#endif
`

// commonFiles names the runtime header and source.
func commonFiles(md *meta.Metadata) (header, source string) {
	return md.Prefix + "_device.h", md.Prefix + "_device.c"
}

func generateCommonHeader(logger *slog.Logger, outDir string, md *meta.Metadata) (string, error) {
	name, _ := commonFiles(md)
	tmpl, err := template.New("common_header").Parse(commonHeaderTmpl)
	if err != nil {
		return "", fmt.Errorf("parse common header template: %w", err)
	}
	data := struct {
		Banner string
		Guard  string
	}{
		Banner: common.HeaderComment(common.BlockComment, "C", md.Version()),
		Guard:  strings.ToUpper(md.Prefix) + "_DEVICE_H",
	}
	out := filepath.Join(outDir, name)
	if err := render(tmpl, data, out); err != nil {
		return "", err
	}
	logger.Info("Generated common header", "file", out)
	return name, nil
}
