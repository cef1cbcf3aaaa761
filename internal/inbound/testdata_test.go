package inbound

import "strings"

// crlf turns a readable fixture into wire form.
func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(strings.TrimLeft(s, "\n"), "\n", "\r\n"))
}

var pngBytes = "\x89PNG\r\n\x1a\nfakeimagedata"

var mixedWithAttachment = crlf(`
From: Baker <baker@village.com>
Subject: =?UTF-8?B?QmFrZSBsaXN0IOKAlCB0b2RheQ==?=
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: text/plain; charset=utf-8

See attached.
--outer
Content-Type: image/png
Content-Disposition: attachment; filename="list.png"
Content-Transfer-Encoding: base64

iVBORw0KGgpmYWtlaW1hZ2VkYXRh
--outer--
`)

var nestedInline = crlf(`
From: owner@village.com
Subject: plan
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: text/plain

hi
--outer
Content-Type: multipart/related; boundary="inner"

--inner
Content-Type: text/html

<img src="cid:x">
--inner
Content-Type: image/jpeg
Content-Transfer-Encoding: base64

/9j/4GpwZWdkYXRh
--inner--
--outer--
`)

var nameParamOnly = crlf(`
From: owner@village.com
Subject: plan
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b"

--b
Content-Type: image/heic; name="IMG_0042.HEIC"
Content-Transfer-Encoding: base64

/9j/4GpwZWdkYXRh
--b--
`)

var emptyImageThenReal = crlf(`
From: owner@village.com
Subject: plan
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b"

--b
Content-Type: image/png
Content-Disposition: attachment; filename="empty.png"
Content-Transfer-Encoding: base64


--b
Content-Type: image/jpeg
Content-Disposition: attachment; filename="real.jpg"
Content-Transfer-Encoding: base64

/9j/4GpwZWdkYXRh
--b--
`)

var textOnly = crlf(`
From: owner@village.com
Subject: no photo today
MIME-Version: 1.0
Content-Type: text/plain; charset=utf-8

Nothing attached.
`)

var singlePartImage = crlf(`
From: owner@village.com
Subject: plan
MIME-Version: 1.0
Content-Type: image/jpeg
Content-Transfer-Encoding: base64

/9j/4GpwZWdkYXRh
`)
