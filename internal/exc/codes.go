// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

package exc

const (
	CodeUnknownFatal          = "U0000"
	CodeValidation            = "U0001"
	CodeUnsupportedLanguage   = "U0002"
	CodeBackendCompileFailure = "U0003"
	CodeBatchCompileFailure   = "U0004"
	CodeWorkspace             = "U0005"
	CodeManifest              = "U0006"
	CodeCanceled              = "U0007"
)
