// Package film demuxes Sega FILM containers (.CPK).
package film

// Sega FILM layout. All integers are big-endian.
//
// header { // 16 bytes.
//   magic      [4]byte // "FILM"
//   dataOffset uint32  // Start of sample data, also the size of header+chunks.
//   version    [4]byte
//   reserved   uint32
// }
//
// chunk { // Repeated until dataOffset.
//   tag    [4]byte
//   length uint32  // Includes the 8 byte tag and length.
//   body   [length-8]byte
// }
//
// FDSC {
//   videoCodec      [4]byte // +8 "cvid"
//   videoHeight     uint32  // +12
//   videoWidth      uint32  // +16
//   videoDepth      uint8   // +20
//   audioChannels   uint8   // +21
//   audioBitDepth   uint8   // +22
//   audioEncoding   uint8   // +23
//   audioSampleRate uint16  // +24
// }
//
// STAB {
//   baseFrequency uint32 // +8
//   entryCount    uint32 // +12
//   entries       []sample
// }
//
// sample { // 16 bytes.
//   offset uint32 // Relative to dataOffset.
//   size   uint32
//   marker uint32 // 0xFFFFFFFF for audio, otherwise video ordering info.
//   aux    uint32 // Video: ticks to next frame.
// }
//
// Samples are stored in disc layout order, which is also the playback order.
